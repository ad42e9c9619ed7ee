// Package observability provides audit logging helpers for the trust module.
package observability

import (
	"context"
	"log/slog"

	"ghostauth/pkg/attrs"
	"ghostauth/pkg/platform/audit"
	"ghostauth/pkg/requestcontext"
)

// Publisher is the subset of the audit publisher LogAudit needs.
type Publisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit logs audit events to both structured logger and audit publisher.
// It enriches events with request ID and client IP, and lifts user_id,
// session_id, reason and trust_score out of attrList.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher Publisher, event audit.AuditEvent, severity audit.Severity, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	if logger != nil {
		args := append(attrList, "event", string(event), "log_type", "audit", "category", string(event.Category()))
		level := slog.LevelInfo
		if severity != audit.SeverityInfo {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, string(event), args...)
	}

	if publisher == nil {
		return
	}

	score, ok := attrs.ExtractInt(attrList, "trust_score")
	if !ok {
		score = -1
	}
	err := publisher.Emit(ctx, audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		UserID:     attrs.ExtractString(attrList, "user_id"),
		SessionID:  attrs.ExtractString(attrList, "session_id"),
		Action:     string(event),
		Reason:     attrs.ExtractString(attrList, "reason"),
		IP:         requestcontext.ClientIP(ctx),
		RequestID:  requestID,
		Severity:   severity,
		TrustScore: score,
	})
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to publish audit event",
			"event", string(event),
			"error", err,
		)
	}
}
