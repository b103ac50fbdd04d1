package ports_test

import (
	"context"
	"testing"

	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/ports"
)

// MockStore is a minimal in-memory SessionStore used to exercise the contract suite itself.
type MockStore struct {
	data map[string]domain.SessionSnapshot
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]domain.SessionSnapshot),
	}
}

func (m *MockStore) Save(ctx context.Context, snap domain.SessionSnapshot) error {
	m.data[snap.ID] = snap
	return nil
}

func (m *MockStore) Load(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	snap, ok := m.data[sessionID]
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return snap, nil
}

func (m *MockStore) Delete(ctx context.Context, sessionID string) error {
	delete(m.data, sessionID)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestSessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, NewMockStore())
}
