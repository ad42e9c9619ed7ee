package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ghostauth/internal/aura"
	"ghostauth/internal/platform/keylock"
	"ghostauth/internal/profiling"
	"ghostauth/internal/trust/metrics"
	"ghostauth/internal/trust/models"
	"ghostauth/internal/trust/observability"
	"ghostauth/internal/trust/ports"
	dErrors "ghostauth/pkg/domain-errors"
	"ghostauth/pkg/platform/audit"
	"ghostauth/pkg/platform/sentinel"
	"ghostauth/pkg/requestcontext"
)

// Type aliases for interfaces from ports package.
type (
	ProfileStore   = ports.ProfileStore
	SessionLog     = ports.SessionLog
	AuditPublisher = ports.AuditPublisher
)

const (
	// ColdStartScore is returned for a user's first session.
	ColdStartScore = 100
	// DefaultAdaptThreshold: scores strictly above it replace the baseline.
	DefaultAdaptThreshold = 85
	DefaultLowTrust       = 50

	// maxScoreAttempts bounds how often a lost baseline race is recomputed
	// against the winner before giving up with a conflict.
	maxScoreAttempts = 3
)

// Service scores sessions against the stored behavioral baseline.
type Service struct {
	profiles       ProfileStore
	sessions       SessionLog
	generator      *aura.Generator
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	locks          *keylock.Map

	adaptThreshold int
	lowTrust       int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithGenerator replaces the default generator (process-wide locked source).
func WithGenerator(g *aura.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

func WithThresholds(adapt, lowTrust int) Option {
	return func(s *Service) {
		s.adaptThreshold = adapt
		s.lowTrust = lowTrust
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(profiles ProfileStore, sessions SessionLog, opts ...Option) (*Service, error) {
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if sessions == nil {
		return nil, errors.New("session log is required")
	}

	svc := &Service{
		profiles:       profiles,
		sessions:       sessions,
		logger:         slog.Default(),
		tracer:         otel.Tracer("ghostauth/internal/trust/service"),
		locks:          keylock.New(),
		adaptThreshold: DefaultAdaptThreshold,
		lowTrust:       DefaultLowTrust,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.generator == nil {
		svc.generator = aura.NewGenerator(aura.NewLockedSource())
	}
	return svc, nil
}

// outcome is the result of comparing one digest with the stored baseline.
type outcome struct {
	score     int
	coldStart bool
	adapted   bool
	previous  string
}

// Score extracts features, derives the session's aura, compares it with the
// user's baseline and records the session. The first session of a user
// becomes the baseline and scores 100; later sessions scoring above the adapt
// threshold replace the baseline.
//
// Scorings for the same user are serialized in-process; across replicas the
// store's Create/CompareAndSwap detect lost races, which are recomputed
// against the winning baseline. The profile write and the session append are
// not atomic: if the append fails the baseline change stands.
func (s *Service) Score(ctx context.Context, req models.ScoreRequest) (*models.ScoreResult, error) {
	ctx, span := s.tracer.Start(ctx, "trust.Score", trace.WithAttributes(
		attribute.String("session_id", req.SessionID),
		attribute.Int("events", len(req.Events)),
	))
	defer span.End()

	res, err := s.score(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("trust_score", res.TrustScore),
		attribute.Bool("cold_start", res.ColdStart),
		attribute.Bool("adapted", res.Adapted),
	)
	return res, nil
}

func (s *Service) score(ctx context.Context, req models.ScoreRequest) (*models.ScoreResult, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	features, err := profiling.Extract(req.Events)
	if err != nil {
		return nil, err
	}
	digest, err := s.generator.Generate(features)
	if err != nil {
		return nil, err
	}
	current := digest.String()

	unlock, err := s.locks.Lock(ctx, req.UserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "acquire user lock")
	}
	defer unlock()

	out, err := s.resolve(ctx, req, current)
	if err != nil {
		return nil, err
	}

	record := &models.SessionRecord{
		ID:          uuid.New(),
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		IP:          req.Device.IP,
		MacID:       req.Device.MacID,
		DeviceUUID:  req.Device.DeviceUUID,
		DeviceLabel: req.Device.Label,
		Features:    features,
		AuraHash:    current,
		TrustScore:  out.score,
		ColdStart:   out.coldStart,
		Adapted:     out.adapted,
		Timestamp:   requestcontext.Now(ctx).UTC(),
	}
	if err := s.sessions.Append(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "failed to append session record",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", req.UserID,
			"session_id", req.SessionID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record session")
	}

	s.emit(ctx, req, out)
	s.metrics.ObserveScore(out.score, len(req.Events), time.Since(start))

	return &models.ScoreResult{
		AuraHash:   current,
		TrustScore: out.score,
		ColdStart:  out.coldStart,
		Adapted:    out.adapted,
		RecordID:   record.ID,
	}, nil
}

// resolve reads the baseline and applies cold start or adaptation.
func (s *Service) resolve(ctx context.Context, req models.ScoreRequest, current string) (outcome, error) {
	for attempt := 1; attempt <= maxScoreAttempts; attempt++ {
		profile, err := s.profiles.Get(ctx, req.UserID)
		if errors.Is(err, sentinel.ErrNotFound) {
			created, err := s.createBaseline(ctx, req.UserID, current)
			if err != nil {
				return outcome{}, err
			}
			if created {
				return outcome{score: ColdStartScore, coldStart: true}, nil
			}
			s.raceLost(ctx, req.UserID, attempt)
			continue
		}
		if err != nil {
			return outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
		}

		score, err := aura.HammingScore(profile.BaselineAuraHash, current)
		if err != nil {
			return outcome{}, err
		}
		out := outcome{score: score, previous: profile.BaselineAuraHash}
		if score <= s.adaptThreshold {
			return out, nil
		}

		swapped, err := s.profiles.CompareAndSwap(ctx, req.UserID, profile.BaselineAuraHash, current)
		if err != nil {
			return outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update baseline")
		}
		if swapped {
			out.adapted = true
			return out, nil
		}
		s.raceLost(ctx, req.UserID, attempt)
	}

	observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventScoreConflict, audit.SeverityWarning,
		"user_id", req.UserID,
		"session_id", req.SessionID,
		"reason", fmt.Sprintf("baseline changed concurrently %d times", maxScoreAttempts),
	)
	return outcome{}, dErrors.New(dErrors.CodeConflict, "baseline is being updated concurrently, retry the request")
}

func (s *Service) createBaseline(ctx context.Context, userID, digest string) (bool, error) {
	profile, err := models.NewProfile(userID, digest, requestcontext.Now(ctx).UTC())
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "invalid baseline")
	}
	err = s.profiles.Create(ctx, profile)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sentinel.ErrConflict):
		return false, nil
	default:
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create profile")
	}
}

func (s *Service) raceLost(ctx context.Context, userID string, attempt int) {
	s.metrics.IncrementBaselineRaces()
	s.logger.InfoContext(ctx, "baseline changed concurrently, recomputing",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"attempt", attempt,
	)
}

func (s *Service) emit(ctx context.Context, req models.ScoreRequest, out outcome) {
	switch {
	case out.coldStart:
		s.metrics.IncrementColdStarts()
		observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventColdStart, audit.SeverityInfo,
			"user_id", req.UserID,
			"session_id", req.SessionID,
			"trust_score", out.score,
		)
	case out.adapted:
		s.metrics.IncrementAdaptations()
		observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventBaselineAdapted, audit.SeverityInfo,
			"user_id", req.UserID,
			"session_id", req.SessionID,
			"trust_score", out.score,
			"previous_aura_hash", out.previous,
		)
	}

	if !out.coldStart && out.score <= s.lowTrust {
		s.metrics.IncrementLowTrust()
		observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventLowTrust, audit.SeverityWarning,
			"user_id", req.UserID,
			"session_id", req.SessionID,
			"trust_score", out.score,
			"reason", "behavior diverges from baseline",
		)
	}

	observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventTrustScored, audit.SeverityInfo,
		"user_id", req.UserID,
		"session_id", req.SessionID,
		"trust_score", out.score,
		"mac_id", req.Device.MacID,
		"device_uuid", req.Device.DeviceUUID,
	)
}
