package retrofx

import (
	"context"
	"log/slog"

	"github.com/aretw0/retrofx/internal/logging"
	"github.com/aretw0/retrofx/pkg/catalog"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/ports"
	"github.com/aretw0/retrofx/pkg/preview"
	"github.com/aretw0/retrofx/pkg/selection"
	"github.com/aretw0/retrofx/pkg/sequencer"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Editor is the high-level entry point for one editing session.
// It wires the catalog, selection, sequencer and preview around a single Session.
type Editor struct {
	session   *domain.Session
	catalog   *catalog.Catalog
	selection *selection.Selection
	sequencer *sequencer.Sequencer
	renderer  *preview.Renderer
	uploader  ports.UploadGateway

	id       string
	policy   selection.Policy
	viewport int
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	clock    clockwork.Clock
}

// Option defines a functional option for configuring the Editor.
type Option func(*Editor)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithCatalog replaces the built-in effect catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Editor) {
		e.catalog = c
	}
}

// WithParamPolicy sets how out-of-range parameter values are handled.
func WithParamPolicy(p selection.Policy) Option {
	return func(e *Editor) {
		e.policy = p
	}
}

// WithViewportWidth sets the width the source image is scaled to fit.
func WithViewportWidth(w int) Option {
	return func(e *Editor) {
		e.viewport = w
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Editor) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithSessionID fixes the session ID instead of generating one.
func WithSessionID(id string) Option {
	return func(e *Editor) {
		e.id = id
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(e *Editor) {
		e.clock = c
	}
}

// New creates an Editor with an empty idle session.
func New(uploader ports.UploadGateway, processor ports.ProcessingGateway, fetcher ports.ImageFetcher, opts ...Option) *Editor {
	e := &Editor{
		uploader: uploader,
		catalog:  catalog.Default(),
		policy:   selection.PolicyClamp,
		viewport: preview.DefaultViewportWidth,
		logger:   logging.NewNop(),
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	e.logger = e.logger.With("session_id", e.id)

	e.session = domain.NewSession(e.id, e.clock.Now())
	e.selection = selection.New(e.session, e.catalog,
		selection.WithPolicy(e.policy),
		selection.WithClock(e.clock),
	)
	e.renderer = preview.New(fetcher,
		preview.WithViewportWidth(e.viewport),
		preview.WithLogger(e.logger),
	)
	e.sequencer = sequencer.New(e.session, processor, e.renderer,
		sequencer.WithLogger(e.logger),
		sequencer.WithHooks(e.hooks),
		sequencer.WithClock(e.clock),
	)
	return e
}

// ID returns the session ID.
func (e *Editor) ID() string {
	return e.id
}

// Catalog returns the effect catalog the editor validates against.
func (e *Editor) Catalog() *catalog.Catalog {
	return e.catalog
}

// Upload sends the image to the upload service and makes it the session's
// image. The previous image, selection and pending submissions are discarded
// only once the new source has been fetched and decoded; on failure the
// session is left as it was.
func (e *Editor) Upload(ctx context.Context, filename string, data []byte) (domain.ImageRef, error) {
	ref, err := e.uploader.Upload(ctx, filename, data)
	if err != nil {
		e.emitUpload(ctx, "", err)
		e.logger.Warn("upload failed", "filename", filename, "err", err)
		return "", err
	}

	frame, err := e.renderer.PrepareSource(ctx, ref)
	if err != nil {
		e.emitUpload(ctx, ref, err)
		e.logger.Warn("source preview failed", "image_ref", ref, "err", err)
		return "", err
	}

	e.session.Lock()
	e.session.ImageRef = ref
	e.session.Selection = nil
	e.sequencer.InvalidateLocked(ctx)
	e.renderer.Commit(frame)
	e.session.UpdatedAt = e.clock.Now()
	e.session.Unlock()

	e.emitUpload(ctx, ref, nil)
	e.logger.Info("image loaded", "image_ref", ref)
	return ref, nil
}

// SelectEffect replaces the selection with the defaults of id.
func (e *Editor) SelectEffect(id domain.EffectID) error {
	return e.selection.Set(id)
}

// UpdateParam writes one parameter of the active effect and returns the stored value.
func (e *Editor) UpdateParam(key string, value any) (any, error) {
	return e.selection.UpdateParam(key, value)
}

// ClearSelection removes the active effect.
func (e *Editor) ClearSelection() {
	e.selection.Clear()
}

// Selection returns a copy of the active effect.
func (e *Editor) Selection() (domain.EffectInstance, bool) {
	return e.selection.Active()
}

// Apply submits the active effect and waits for the response.
// A superseded response returns a stale Outcome and no error.
func (e *Editor) Apply(ctx context.Context) (sequencer.Outcome, error) {
	return e.sequencer.Submit(ctx)
}

// ApplyAsync submits the active effect and resolves in the background.
func (e *Editor) ApplyAsync(ctx context.Context) (domain.RequestToken, <-chan sequencer.AsyncResult, error) {
	return e.sequencer.SubmitAsync(ctx)
}

// Acknowledge clears a surfaced processing error.
func (e *Editor) Acknowledge(ctx context.Context) bool {
	return e.sequencer.Acknowledge(ctx)
}

// Export encodes the visible frame as PNG and names it after the effect that
// produced it. A source frame exports as the original.
func (e *Editor) Export() (string, []byte, error) {
	f, ok := e.renderer.Current()
	if !ok {
		return "", nil, domain.Validation("export", domain.ErrNothingToExport, "")
	}
	data, err := f.EncodePNG()
	if err != nil {
		return "", nil, err
	}
	return preview.ExportFilename(f.Effect), data, nil
}

// Frame returns the visible preview frame.
func (e *Editor) Frame() (*preview.Frame, bool) {
	return e.renderer.Current()
}

// Preview returns the visible frame as PNG.
func (e *Editor) Preview() ([]byte, error) {
	return e.renderer.ExportCurrentFrame()
}

// Reset discards the image, the selection and the preview, and drops every
// pending submission.
func (e *Editor) Reset(ctx context.Context) {
	e.session.Lock()
	defer e.session.Unlock()

	e.session.ImageRef = ""
	e.session.Selection = nil
	e.sequencer.InvalidateLocked(ctx)
	e.renderer.Clear()
	e.session.UpdatedAt = e.clock.Now()
	e.logger.Info("session reset")
}

// Snapshot returns a detached copy of the session.
func (e *Editor) Snapshot() domain.SessionSnapshot {
	return e.session.Snapshot()
}

// Stats returns submission counters.
func (e *Editor) Stats() sequencer.Stats {
	return e.sequencer.Stats()
}

func (e *Editor) emitUpload(ctx context.Context, ref domain.ImageRef, err error) {
	if e.hooks.OnUpload == nil {
		return
	}
	e.hooks.OnUpload(ctx, &domain.UploadEvent{
		EventBase: domain.EventBase{
			Timestamp: e.clock.Now(),
			Type:      domain.EventUpload,
			SessionID: e.id,
		},
		ImageRef: ref,
		Err:      err,
	})
}
