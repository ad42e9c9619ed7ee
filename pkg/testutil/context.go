package testutil

import (
	"net/http"
	"time"

	"ghostauth/pkg/requestcontext"
)

// WithVerifiedUser marks the request as bearer-authenticated for userID,
// as the identity middleware would.
func WithVerifiedUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithClient injects client IP and User-Agent without running the metadata middleware.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
