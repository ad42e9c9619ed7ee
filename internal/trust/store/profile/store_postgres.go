package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ghostauth/internal/trust/models"
	"ghostauth/pkg/platform/sentinel"
)

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT user_id, baseline_aura_hash, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	var p models.Profile
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.BaselineAuraHash, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) Put(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, baseline_aura_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			baseline_aura_hash = EXCLUDED.baseline_aura_hash,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, profile.UserID, profile.BaselineAuraHash, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, baseline_aura_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, profile.UserID, profile.BaselineAuraHash, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create profile rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, userID, old, new string) (bool, error) {
	query := `
		UPDATE profiles
		SET baseline_aura_hash = $3, updated_at = now()
		WHERE user_id = $1 AND baseline_aura_hash = $2
	`
	res, err := s.db.ExecContext(ctx, query, userID, old, new)
	if err != nil {
		return false, fmt.Errorf("swap baseline: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap baseline rows affected: %w", err)
	}
	return rows == 1, nil
}
