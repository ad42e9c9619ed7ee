package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "ghostauth/pkg/domain-errors"
	"ghostauth/pkg/platform/httputil"
	"ghostauth/pkg/requestcontext"
)

// TokenValidator resolves a bearer token to the user it was issued to.
type TokenValidator interface {
	Subject(tokenString string) (string, error)
}

// OptionalBearer verifies an Authorization bearer token when one is sent and
// records its subject in the request context. Requests without the header
// pass through unauthenticated; a present but invalid token is rejected.
func OptionalBearer(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || validator == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - malformed authorization header",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			subject, err := validator.Subject(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(ctx, subject)))
		})
	}
}
