package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/retrofx"
	"github.com/aretw0/retrofx/internal/logging"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed session lock may be held.
const DefaultLockTTL = 30 * time.Second

// Factory builds the editor for a new session.
type Factory func(id string, opts ...retrofx.Option) *retrofx.Editor

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager keeps the live editors of a process apart and mirrors their
// snapshots into a SessionStore. It uses Reference Counting to garbage
// collect unused locks.
type Manager struct {
	factory Factory
	store   ports.SessionStore

	mu      sync.Mutex            // Global lock for the maps
	locks   map[string]*lockEntry // Map of active locks
	editors map[string]*retrofx.Editor

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager building editors with factory and persisting
// snapshots to store.
func NewManager(factory Factory, store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		factory: factory,
		store:   store,
		locks:   make(map[string]*lockEntry),
		editors: make(map[string]*retrofx.Editor),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Create starts a new session with a fresh ID and persists its first snapshot.
func (m *Manager) Create(ctx context.Context, opts ...retrofx.Option) (*retrofx.Editor, error) {
	id := uuid.NewString()
	ed := m.factory(id, opts...)

	m.mu.Lock()
	m.editors[id] = ed
	m.mu.Unlock()

	if err := m.Sync(ctx, id); err != nil {
		m.mu.Lock()
		delete(m.editors, id)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	m.logger.Info("session created", "session_id", id)
	return ed, nil
}

// Get returns the live editor for sessionID.
func (m *Manager) Get(sessionID string) (*retrofx.Editor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ed, ok := m.editors[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return ed, nil
}

// Do runs fn against the session's editor while holding the session lock and
// persists the resulting snapshot. The snapshot is saved even when fn fails,
// since a failed apply still changes the processing state.
func (m *Manager) Do(ctx context.Context, sessionID string, fn func(context.Context, *retrofx.Editor) error) error {
	ed, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		fnErr := fn(ctx, ed)
		if err := m.store.Save(ctx, ed.Snapshot()); err != nil {
			return errors.Join(fnErr, fmt.Errorf("failed to persist session: %w", err))
		}
		return fnErr
	})
}

// Sync persists the current snapshot of a live session.
func (m *Manager) Sync(ctx context.Context, sessionID string) error {
	ed, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, ed.Snapshot())
	})
}

// Destroy tears the session down: the editor is reset and forgotten and the
// stored snapshot deleted. Nothing of the session survives.
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		ed, ok := m.editors[sessionID]
		delete(m.editors, sessionID)
		m.mu.Unlock()

		if ok {
			ed.Reset(ctx)
		}
		if err := m.store.Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		if !ok {
			return domain.ErrSessionNotFound
		}
		m.logger.Info("session destroyed", "session_id", sessionID)
		return nil
	})
}

// Live returns the IDs of sessions held by this process, sorted.
func (m *Manager) Live() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.editors))
	for id := range m.editors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
