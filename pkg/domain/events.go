package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventUpload      EventType = "upload"
	EventSubmit      EventType = "submit"
	EventResolve     EventType = "resolve"
	EventStateChange EventType = "state_change"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// UploadEvent reports the outcome of an upload.
type UploadEvent struct {
	EventBase
	ImageRef ImageRef `json:"image_ref,omitempty"`
	Err      error    `json:"-"`
}

// SubmitEvent is emitted when the sequencer mints a token.
type SubmitEvent struct {
	EventBase
	Token    RequestToken `json:"token"`
	EffectID EffectID     `json:"effect_id"`
}

// ResolveEvent is emitted when a submission's response arrives.
type ResolveEvent struct {
	EventBase
	Token    RequestToken  `json:"token"`
	EffectID EffectID      `json:"effect_id"`
	Stale    bool          `json:"stale"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// StateEvent reports a ProcessingState transition.
type StateEvent struct {
	EventBase
	From ProcessingState `json:"from"`
	To   ProcessingState `json:"to"`
}

// LifecycleHooks defines callbacks for observability. Hooks run synchronously
// and may be invoked while the session lock is held; they must not call back
// into the editor.
type LifecycleHooks struct {
	OnUpload      func(context.Context, *UploadEvent)
	OnSubmit      func(context.Context, *SubmitEvent)
	OnResolve     func(context.Context, *ResolveEvent)
	OnStateChange func(context.Context, *StateEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnUpload:      chain(h.OnUpload, other.OnUpload),
		OnSubmit:      chain(h.OnSubmit, other.OnSubmit),
		OnResolve:     chain(h.OnResolve, other.OnResolve),
		OnStateChange: chain(h.OnStateChange, other.OnStateChange),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
