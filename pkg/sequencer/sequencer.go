package sequencer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/retrofx/internal/logging"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/ports"
	"github.com/aretw0/retrofx/pkg/preview"
	"github.com/jonboulle/clockwork"
)

// Presenter is the single writer of the preview surface.
type Presenter interface {
	PrepareResult(ctx context.Context, result domain.RenderableResult) (*preview.Frame, error)
	Commit(f *preview.Frame)
}

// Outcome describes how a submission resolved.
// A stale outcome carries no result and had no effect.
type Outcome struct {
	Token  domain.RequestToken
	Result domain.RenderableResult
	Stale  bool
}

// AsyncResult is delivered once by SubmitAsync.
type AsyncResult struct {
	Outcome Outcome
	Err     error
}

// Stats counts submissions by how they resolved.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Applied   uint64 `json:"applied"`
	Stale     uint64 `json:"stale"`
	Failed    uint64 `json:"failed"`
}

// Sequencer submits processing requests for a session and applies only the newest response.
type Sequencer struct {
	session   *domain.Session
	processor ports.ProcessingGateway
	presenter Presenter
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	clock     clockwork.Clock

	// last is guarded by the session lock.
	last domain.RequestToken

	submitted atomic.Uint64
	applied   atomic.Uint64
	stale     atomic.Uint64
	failed    atomic.Uint64
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = l
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(s *Sequencer) {
		s.hooks = s.hooks.Merge(h)
	}
}

// WithClock sets the clock used for timestamps and durations.
func WithClock(c clockwork.Clock) Option {
	return func(s *Sequencer) {
		s.clock = c
	}
}

// New creates a Sequencer bound to session.
func New(session *domain.Session, processor ports.ProcessingGateway, presenter Presenter, opts ...Option) *Sequencer {
	s := &Sequencer{
		session:   session,
		processor: processor,
		presenter: presenter,
		logger:    logging.NewNop(),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ticket struct {
	token  domain.RequestToken
	ref    domain.ImageRef
	inst   domain.EffectInstance
	issued time.Time
}

// Submit sends the current selection for processing and waits for the response.
//
// It fails fast with domain.ErrNothingToProcess when no image or no effect is
// set. A superseded response yields Outcome.Stale and a nil error. A failure
// of the newest submission moves the session to StateError and is returned.
func (s *Sequencer) Submit(ctx context.Context) (Outcome, error) {
	t, err := s.begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return s.resolve(ctx, t)
}

// SubmitAsync mints the token before returning, so call order decides which
// submission is newest, then resolves in the background.
func (s *Sequencer) SubmitAsync(ctx context.Context) (domain.RequestToken, <-chan AsyncResult, error) {
	t, err := s.begin(ctx)
	if err != nil {
		return 0, nil, err
	}
	done := make(chan AsyncResult, 1)
	go func() {
		out, err := s.resolve(ctx, t)
		done <- AsyncResult{Outcome: out, Err: err}
		close(done)
	}()
	return t.token, done, nil
}

func (s *Sequencer) begin(ctx context.Context) (ticket, error) {
	s.session.Lock()
	defer s.session.Unlock()

	if s.session.ImageRef == "" || s.session.Selection == nil {
		return ticket{}, domain.Validation("submit", domain.ErrNothingToProcess, "")
	}

	s.last++
	t := ticket{
		token:  s.last,
		ref:    s.session.ImageRef,
		inst:   s.session.Selection.Clone(),
		issued: s.clock.Now(),
	}
	s.submitted.Add(1)

	if s.session.State == domain.StateError {
		s.transitionLocked(ctx, domain.StateIdle)
	}
	s.transitionLocked(ctx, domain.StateInFlight)

	s.logger.Debug("submission issued", "session_id", s.session.ID, "token", t.token, "effect", t.inst.EffectID)
	if s.hooks.OnSubmit != nil {
		s.hooks.OnSubmit(ctx, &domain.SubmitEvent{
			EventBase: s.base(domain.EventSubmit),
			Token:     t.token,
			EffectID:  t.inst.EffectID,
		})
	}
	return t, nil
}

func (s *Sequencer) resolve(ctx context.Context, t ticket) (Outcome, error) {
	result, err := s.processor.Process(ctx, t.ref, t.inst)
	var frame *preview.Frame
	if err == nil {
		frame, err = s.presenter.PrepareResult(ctx, result)
	}
	if frame != nil {
		frame.Effect = t.inst.EffectID
	}

	s.session.Lock()
	defer s.session.Unlock()

	ev := &domain.ResolveEvent{
		EventBase: s.base(domain.EventResolve),
		Token:     t.token,
		EffectID:  t.inst.EffectID,
		Duration:  s.clock.Since(t.issued),
	}
	defer func() {
		if s.hooks.OnResolve != nil {
			s.hooks.OnResolve(ctx, ev)
		}
	}()

	if t.token != s.last {
		s.stale.Add(1)
		ev.Stale = true
		s.logger.Debug("stale response dropped", "session_id", s.session.ID, "token", t.token, "current", s.last)
		return Outcome{Token: t.token, Stale: true}, nil
	}

	if err != nil {
		s.failed.Add(1)
		ev.Err = err
		s.transitionLocked(ctx, domain.StateError)
		s.session.LastError = err.Error()
		s.logger.Warn("processing failed", "session_id", s.session.ID, "token", t.token, "err", err)
		return Outcome{Token: t.token}, err
	}

	s.presenter.Commit(frame)
	s.applied.Add(1)
	s.transitionLocked(ctx, domain.StateIdle)
	s.logger.Info("result applied", "session_id", s.session.ID, "token", t.token, "effect", t.inst.EffectID)
	return Outcome{Token: t.token, Result: result}, nil
}

// Acknowledge clears a surfaced error. It reports whether the session was in StateError.
func (s *Sequencer) Acknowledge(ctx context.Context) bool {
	s.session.Lock()
	defer s.session.Unlock()
	if s.session.State != domain.StateError {
		return false
	}
	s.transitionLocked(ctx, domain.StateIdle)
	return true
}

// Invalidate marks every pending submission stale and returns the session to idle.
func (s *Sequencer) Invalidate(ctx context.Context) {
	s.session.Lock()
	defer s.session.Unlock()
	s.InvalidateLocked(ctx)
}

// InvalidateLocked is Invalidate for callers already holding the session lock.
func (s *Sequencer) InvalidateLocked(ctx context.Context) {
	s.last++
	s.transitionLocked(ctx, domain.StateIdle)
}

// Current returns the newest token minted.
func (s *Sequencer) Current() domain.RequestToken {
	s.session.Lock()
	defer s.session.Unlock()
	return s.last
}

// Stats returns resolution counters.
func (s *Sequencer) Stats() Stats {
	return Stats{
		Submitted: s.submitted.Load(),
		Applied:   s.applied.Load(),
		Stale:     s.stale.Load(),
		Failed:    s.failed.Load(),
	}
}

func (s *Sequencer) transitionLocked(ctx context.Context, to domain.ProcessingState) {
	from := s.session.State
	if from == to {
		return
	}
	if err := s.session.TransitionLocked(to); err != nil {
		s.logger.Error("state transition refused", "session_id", s.session.ID, "err", err)
		return
	}
	s.session.UpdatedAt = s.clock.Now()
	if s.hooks.OnStateChange != nil {
		s.hooks.OnStateChange(ctx, &domain.StateEvent{
			EventBase: s.base(domain.EventStateChange),
			From:      from,
			To:        to,
		})
	}
}

func (s *Sequencer) base(t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: s.clock.Now(),
		Type:      t,
		SessionID: s.session.ID,
	}
}
