package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ghostauth/internal/ratelimit/metrics"
	"ghostauth/internal/ratelimit/models"
	"ghostauth/internal/trust/observability"
	"ghostauth/pkg/platform/audit"
	"ghostauth/pkg/platform/circuit"
	"ghostauth/pkg/platform/httputil"
	"ghostauth/pkg/requestcontext"
)

// BucketStore is a sliding-window limiter backend.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type Middleware struct {
	primary   BucketStore
	fallback  BucketStore
	breaker   *circuit.Breaker
	limit     models.Limit
	logger    *slog.Logger
	publisher observability.Publisher
	metrics   *metrics.Metrics
	disabled  bool
}

type Option func(*Middleware)

// WithFallback sets the limiter used while the primary is failing. Without
// one, requests fail open.
func WithFallback(store BucketStore) Option {
	return func(m *Middleware) {
		m.fallback = store
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.breaker = b
	}
}

func WithAuditPublisher(p observability.Publisher) Option {
	return func(m *Middleware) {
		m.publisher = p
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(primary BucketStore, limit models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		limit:   limit,
		logger:  logger,
		breaker: circuit.New("ratelimit"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if limit.RequestsPerWindow <= 0 {
		m.disabled = true
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)

		result, degraded, err := m.check(ctx, models.NewIPRateLimitKey(ip))
		if degraded {
			w.Header().Set("X-RateLimit-Status", "degraded")
		}
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed, allowing request",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			m.metrics.IncrementFailOpen()
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)

		if !result.Allowed {
			m.metrics.IncrementDenied()
			observability.LogAudit(ctx, m.logger, m.publisher, audit.EventRateLimitExceeded, audit.SeverityWarning,
				"user_id", r.Header.Get("X-User-Id"),
				"reason", "ip rate limit exceeded",
				"retry_after", result.RetryAfter,
			)
			writeRateLimitExceeded(w, result)
			return
		}

		m.metrics.IncrementAllowed()
		next.ServeHTTP(w, r)
	})
}

// check consults the shared store on every request. While the breaker is
// open the local fallback decides, and the shared call only serves as a
// health probe.
func (m *Middleware) check(ctx context.Context, key string) (*models.RateLimitResult, bool, error) {
	result, err := m.primary.Allow(ctx, key, m.limit.RequestsPerWindow, m.limit.Window)
	if err == nil {
		if _, change := m.breaker.RecordSuccess(); change.Closed {
			m.logger.InfoContext(ctx, "rate limiter recovered, leaving degraded mode")
			m.metrics.SetDegraded(false)
		}
		if !m.breaker.IsOpen() {
			return result, false, nil
		}
	} else if _, change := m.breaker.RecordFailure(); change.Opened {
		m.logger.WarnContext(ctx, "rate limiter unavailable, entering degraded mode", "error", err)
		m.metrics.SetDegraded(true)
	}

	if m.fallback == nil {
		return result, false, err
	}
	result, err = m.fallback.Allow(ctx, key, m.limit.RequestsPerWindow, m.limit.Window)
	return result, true, err
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
