package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ghostauth/internal/trust/models"
	"ghostauth/pkg/platform/sentinel"
)

const (
	profileKeyPrefix = "ghostauth:profile:"

	fieldBaseline  = "baseline_aura_hash"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// RedisStore keeps each profile in a hash. Conditional writes use
// WATCH/MULTI so concurrent replicas cannot overwrite each other.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func profileKey(userID string) string {
	return profileKeyPrefix + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	fields, err := s.client.HGetAll(ctx, profileKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	baseline, ok := fields[fieldBaseline]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &models.Profile{
		UserID:           userID,
		BaselineAuraHash: baseline,
		CreatedAt:        parseTime(fields[fieldCreatedAt]),
		UpdatedAt:        parseTime(fields[fieldUpdatedAt]),
	}, nil
}

func (s *RedisStore) Put(ctx context.Context, profile *models.Profile) error {
	if err := s.client.HSet(ctx, profileKey(profile.UserID), profileFields(profile)...).Err(); err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

func (s *RedisStore) Create(ctx context.Context, profile *models.Profile) error {
	key := profileKey(profile.UserID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return sentinel.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, profileFields(profile)...)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return sentinel.ErrConflict
	default:
		return fmt.Errorf("create profile: %w", err)
	}
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, userID, old, new string) (bool, error) {
	key := profileKey(userID)
	swapped := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldBaseline).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if current != old {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldBaseline, new,
				fieldUpdatedAt, s.now().UTC().Format(time.RFC3339Nano),
			)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("swap baseline: %w", err)
	}
	return swapped, nil
}

func profileFields(p *models.Profile) []any {
	return []any{
		fieldBaseline, p.BaselineAuraHash,
		fieldCreatedAt, p.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt, p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
