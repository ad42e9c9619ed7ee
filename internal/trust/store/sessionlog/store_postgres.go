package sessionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ghostauth/internal/trust/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, record *models.SessionRecord) error {
	features, err := json.Marshal(record.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	query := `
		INSERT INTO sessions (
			id, user_id, session_id, ip, mac_id, device_uuid, device_label,
			features, aura_hash, trust_score, cold_start, adapted, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.SessionID,
		record.IP,
		record.MacID,
		record.DeviceUUID,
		record.DeviceLabel,
		features,
		record.AuraHash,
		record.TrustScore,
		record.ColdStart,
		record.Adapted,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert session record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]models.SessionRecord, error) {
	query := `
		SELECT id, user_id, session_id, ip, mac_id, device_uuid, device_label,
			features, aura_hash, trust_score, cold_start, adapted, created_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query session records: %w", err)
	}
	defer rows.Close()

	var out []models.SessionRecord
	for rows.Next() {
		var (
			r        models.SessionRecord
			features []byte
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.SessionID, &r.IP, &r.MacID, &r.DeviceUUID, &r.DeviceLabel,
			&features, &r.AuraHash, &r.TrustScore, &r.ColdStart, &r.Adapted, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan session record: %w", err)
		}
		if err := json.Unmarshal(features, &r.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session records: %w", err)
	}
	return out, nil
}
