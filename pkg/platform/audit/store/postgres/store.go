package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "ghostauth/pkg/platform/audit"
)

// Store implements audit.Store on the audit_events table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, user_id, session_id, action,
			reason, ip, request_id, severity, trust_score
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var score sql.NullInt16
	if event.TrustScore >= 0 {
		score = sql.NullInt16{Int16: int16(event.TrustScore), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		string(event.Category()),
		event.Timestamp,
		event.UserID,
		event.SessionID,
		event.Action,
		event.Reason,
		event.IP,
		event.RequestID,
		string(event.Severity),
		score,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]audit.Event, error) {
	query := `
		SELECT timestamp, user_id, session_id, action, reason, ip, request_id, severity, trust_score
		FROM audit_events
		WHERE user_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			severity string
			score    sql.NullInt16
		)
		if err := rows.Scan(&e.Timestamp, &e.UserID, &e.SessionID, &e.Action, &e.Reason,
			&e.IP, &e.RequestID, &severity, &score); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Severity = audit.Severity(severity)
		e.TrustScore = -1
		if score.Valid {
			e.TrustScore = int(score.Int16)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
