package ports

import (
	"context"

	"github.com/aretw0/retrofx/pkg/domain"
)

// SessionStore persists session snapshots.
// Snapshots are deleted on session teardown; nothing outlives a session.
type SessionStore interface {
	// Save persists the snapshot under its ID.
	Save(ctx context.Context, snap domain.SessionSnapshot) error

	// Load retrieves the snapshot for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (domain.SessionSnapshot, error)

	// Delete removes the snapshot for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of stored sessions.
	List(ctx context.Context) ([]string, error)
}
