package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategorySecurity covers events relevant to security monitoring and
	// step-up decisions. These feed into SIEM systems and alerting pipelines.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine scoring activity; can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Severity levels for SIEM routing.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	UserID    string
	SessionID string
	Action    string
	Reason    string
	IP        string
	RequestID string
	Severity  Severity
	// TrustScore is set for scoring events; -1 when not applicable.
	TrustScore int
}

// Category derives the category from the action.
func (e Event) Category() EventCategory {
	return AuditEvent(e.Action).Category()
}

type AuditEvent string

const (
	EventTrustScored       AuditEvent = "trust_scored"
	EventColdStart         AuditEvent = "baseline_created"
	EventBaselineAdapted   AuditEvent = "baseline_adapted"
	EventLowTrust          AuditEvent = "low_trust_detected"
	EventScoreConflict     AuditEvent = "score_conflict"
	EventIdentityMismatch  AuditEvent = "identity_mismatch"
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventColdStart:         CategorySecurity,
	EventBaselineAdapted:   CategorySecurity,
	EventLowTrust:          CategorySecurity,
	EventScoreConflict:     CategorySecurity,
	EventIdentityMismatch:  CategorySecurity,
	EventRateLimitExceeded: CategorySecurity,

	EventTrustScored: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID string) ([]Event, error)
}
