// Package sessionlog holds the append-only sinks for scored sessions.
package sessionlog

import (
	"context"
	"sync"

	"ghostauth/internal/trust/models"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records []models.SessionRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, record *models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *record)
	return nil
}

// ListByUser returns the user's records in append order.
func (s *InMemoryStore) ListByUser(_ context.Context, userID string) ([]models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SessionRecord
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}
