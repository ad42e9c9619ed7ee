package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"ghostauth/internal/aura"
	"ghostauth/internal/profiling"
	telemetry "ghostauth/internal/telemetry/models"
	dErrors "ghostauth/pkg/domain-errors"
)

// Profile is the per-user behavioral baseline.
type Profile struct {
	UserID           string
	BaselineAuraHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewProfile validates the baseline digest before a profile is created.
func NewProfile(userID, baseline string, now time.Time) (*Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if _, err := aura.ParseDigest(baseline); err != nil {
		return nil, err
	}
	return &Profile{
		UserID:           userID,
		BaselineAuraHash: baseline,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// SessionRecord is one scored session. Records are append-only.
type SessionRecord struct {
	ID          uuid.UUID               `json:"id"`
	UserID      string                  `json:"user_id"`
	SessionID   string                  `json:"session_id"`
	IP          string                  `json:"ip"`
	MacID       string                  `json:"mac_id"`
	DeviceUUID  string                  `json:"device_uuid"`
	DeviceLabel string                  `json:"device_label,omitempty"`
	Features    profiling.FeatureVector `json:"features"`
	AuraHash    string                  `json:"aura_hash"`
	TrustScore  int                     `json:"trust_score"`
	ColdStart   bool                    `json:"cold_start"`
	Adapted     bool                    `json:"adapted"`
	Timestamp   time.Time               `json:"timestamp"`
}

// Device identifies where a batch came from.
type Device struct {
	IP         string
	MacID      string
	DeviceUUID string
	// Label is a best-effort description derived from the User-Agent.
	Label string
}

// ScoreRequest is the input of one scoring.
type ScoreRequest struct {
	UserID    string
	SessionID string
	Device    Device
	Events    []telemetry.Event
}

// Validate checks identity fields. Events are validated by the extractor.
func (r ScoreRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.UserID) == "":
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	case strings.TrimSpace(r.SessionID) == "":
		return dErrors.New(dErrors.CodeValidation, "session_id is required")
	case strings.TrimSpace(r.Device.MacID) == "":
		return dErrors.New(dErrors.CodeValidation, "mac_id is required")
	case strings.TrimSpace(r.Device.DeviceUUID) == "":
		return dErrors.New(dErrors.CodeValidation, "device_uuid is required")
	}
	return nil
}

// ScoreResult is returned to the caller.
type ScoreResult struct {
	AuraHash   string
	TrustScore int
	ColdStart  bool
	Adapted    bool
	RecordID   uuid.UUID
}
