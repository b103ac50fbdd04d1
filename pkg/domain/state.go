package domain

import (
	"sync"
	"time"
)

// ProcessingState defines where the session is in the apply cycle.
type ProcessingState string

const (
	StateIdle     ProcessingState = "idle"      // Nothing pending, user may apply
	StateInFlight ProcessingState = "in_flight" // At least one submission is awaiting its response
	StateError    ProcessingState = "error"     // The current submission failed; cleared on next submit or acknowledge
)

// ImageRef is the opaque handle returned by the upload service.
// The empty value means no image is loaded.
type ImageRef string

// RequestToken orders processing submissions. Larger tokens are newer.
type RequestToken uint64

// RenderableResult points at a processed image produced by the processing service.
type RenderableResult struct {
	URL string `json:"processed_url"`
}

// Session is the process-wide state of one editing session.
//
// The embedded mutex guards every field. Components that receive the session
// by reference lock it for synchronous mutation and never hold it across
// network or decode work.
type Session struct {
	sync.Mutex

	ID        string
	ImageRef  ImageRef
	Selection *EffectInstance
	State     ProcessingState
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates an empty idle session.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SessionSnapshot is a detached, serializable copy of a Session.
type SessionSnapshot struct {
	ID        string          `json:"id"`
	ImageRef  ImageRef        `json:"image_ref,omitempty"`
	Selection *EffectInstance `json:"selection,omitempty"`
	State     ProcessingState `json:"state"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Sealed holds the encrypted snapshot when the store encrypts at rest.
	// ImageRef, Selection and LastError are then left empty.
	Sealed string `json:"sealed,omitempty"`
}

// SnapshotLocked copies the session. The caller must hold the session lock.
func (s *Session) SnapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{
		ID:        s.ID,
		ImageRef:  s.ImageRef,
		State:     s.State,
		LastError: s.LastError,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Selection != nil {
		sel := s.Selection.Clone()
		snap.Selection = &sel
	}
	return snap
}

// Snapshot locks the session and copies it.
func (s *Session) Snapshot() SessionSnapshot {
	s.Lock()
	defer s.Unlock()
	return s.SnapshotLocked()
}
