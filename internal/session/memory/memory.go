package memory

import (
	"context"
	"sync"

	"docqa/internal/domain"
)

// Store is an in-memory session store for local and single-process use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]domain.Object
}

func New() *Store {
	return &Store{sessions: make(map[string][]domain.Object)}
}

func (s *Store) SetObjects(_ context.Context, id string, list []domain.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = append([]domain.Object(nil), list...)
	return nil
}

func (s *Store) Objects(_ context.Context, id string) ([]domain.Object, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.sessions[id]
	if !ok {
		return nil, false, nil
	}
	return append([]domain.Object(nil), list...), true, nil
}
