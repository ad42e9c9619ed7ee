// Package profile stores user baselines.
package profile

import (
	"context"
	"sync"

	"ghostauth/internal/trust/models"
	"ghostauth/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles in process memory. Not shared across replicas.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[string]models.Profile)}
}

func (s *InMemoryStore) Get(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) Put(_ context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = *profile
	return nil
}

func (s *InMemoryStore) Create(_ context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[profile.UserID]; exists {
		return sentinel.ErrConflict
	}
	s.profiles[profile.UserID] = *profile
	return nil
}

func (s *InMemoryStore) CompareAndSwap(_ context.Context, userID, old, new string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok || p.BaselineAuraHash != old {
		return false, nil
	}
	p.BaselineAuraHash = new
	s.profiles[userID] = p
	return true, nil
}
