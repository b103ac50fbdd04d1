package memory

import (
	"context"
	"sync"

	"github.com/aretw0/retrofx/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.SessionSnapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.SessionSnapshot),
	}
}

// Save persists the snapshot in memory.
func (s *Store) Save(ctx context.Context, snap domain.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.ID] = detach(snap)
	return nil
}

// Load retrieves the snapshot from memory.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[sessionID]
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	// Copy on read so callers can't mutate store state through the params map.
	return detach(snap), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns stored session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}

func detach(snap domain.SessionSnapshot) domain.SessionSnapshot {
	if snap.Selection != nil {
		sel := snap.Selection.Clone()
		snap.Selection = &sel
	}
	return snap
}
