// Package ports declares the storage and audit dependencies of the trust scorer.
package ports

import (
	"context"

	"ghostauth/internal/trust/models"
	"ghostauth/pkg/platform/audit"
)

//go:generate mockgen -source=ports.go -destination=../service/mocks/mocks.go -package=mocks

// ProfileStore keeps one baseline per user.
type ProfileStore interface {
	// Get returns sentinel.ErrNotFound when the user has no profile.
	Get(ctx context.Context, userID string) (*models.Profile, error)
	// Put creates or replaces the profile unconditionally.
	Put(ctx context.Context, profile *models.Profile) error
	// Create inserts the profile only if none exists; otherwise
	// sentinel.ErrConflict.
	Create(ctx context.Context, profile *models.Profile) error
	// CompareAndSwap replaces the baseline only while it still equals old.
	// It reports whether the swap happened.
	CompareAndSwap(ctx context.Context, userID, old, new string) (bool, error)
}

// SessionLog is the append-only record of scored sessions.
type SessionLog interface {
	Append(ctx context.Context, record *models.SessionRecord) error
}

// AuditPublisher receives security events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
