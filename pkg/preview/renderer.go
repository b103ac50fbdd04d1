package preview

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"

	"github.com/aretw0/retrofx/internal/logging"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/ports"
)

// DefaultViewportWidth bounds the source frame when no viewport is reported.
const DefaultViewportWidth = 1024

var errEmptyImage = errors.New("image has no pixels")

// Renderer draws source and result images onto a double-buffered surface.
type Renderer struct {
	fetcher  ports.ImageFetcher
	viewport int
	logger   *slog.Logger

	mu     sync.RWMutex
	front  *Frame
	back   *Frame
	canvas image.Point
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithViewportWidth sets the width source frames are scaled to fit.
// Zero keeps the original size.
func WithViewportWidth(w int) Option {
	return func(r *Renderer) {
		if w >= 0 {
			r.viewport = w
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = l
	}
}

// New creates a Renderer loading images through fetcher.
func New(fetcher ports.ImageFetcher, opts ...Option) *Renderer {
	r := &Renderer{
		fetcher:  fetcher,
		viewport: DefaultViewportWidth,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ViewportWidth returns the configured viewport width.
func (r *Renderer) ViewportWidth() int {
	return r.viewport
}

// PrepareSource loads the original image and scales it to fit the viewport width.
// The surface is not touched.
func (r *Renderer) PrepareSource(ctx context.Context, ref domain.ImageRef) (*Frame, error) {
	data, err := r.fetcher.FetchSource(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		r.logger.Warn("source decode failed", "image_ref", ref, "err", err)
		return nil, err
	}
	return &Frame{
		Kind:   KindSource,
		Image:  FitWidth(img, r.viewport),
		Origin: string(ref),
	}, nil
}

// PrepareResult loads a processed image and stretches it over the current
// canvas. Without a baseline frame it is fitted to the viewport instead.
// The surface is not touched.
func (r *Renderer) PrepareResult(ctx context.Context, result domain.RenderableResult) (*Frame, error) {
	data, err := r.fetcher.FetchResult(ctx, result)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		r.logger.Warn("result decode failed", "url", result.URL, "err", err)
		return nil, err
	}

	r.mu.RLock()
	canvas := r.canvas
	r.mu.RUnlock()

	var scaled *image.NRGBA
	if canvas == (image.Point{}) {
		scaled = FitWidth(img, r.viewport)
	} else {
		scaled = Resize(img, canvas)
	}
	return &Frame{
		Kind:   KindResult,
		Image:  scaled,
		Origin: result.URL,
	}, nil
}

// Commit makes f the visible frame in a single swap. A source frame also
// resets the canvas size that later results are drawn at.
func (r *Renderer) Commit(f *Frame) {
	if f == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.back = f
	r.front, r.back = r.back, r.front
	if f.Kind == KindSource {
		r.canvas = f.Size()
	}
	r.logger.Debug("frame committed", "kind", f.Kind, "width", f.Size().X, "height", f.Size().Y)
}

// ShowSource prepares and commits the original image.
func (r *Renderer) ShowSource(ctx context.Context, ref domain.ImageRef) error {
	f, err := r.PrepareSource(ctx, ref)
	if err != nil {
		return err
	}
	r.Commit(f)
	return nil
}

// ShowResult prepares and commits a processed image. On failure the current
// frame stays visible.
func (r *Renderer) ShowResult(ctx context.Context, result domain.RenderableResult) error {
	f, err := r.PrepareResult(ctx, result)
	if err != nil {
		return err
	}
	r.Commit(f)
	return nil
}

// Current returns the visible frame, if any.
func (r *Renderer) Current() (*Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.front, r.front != nil
}

// Canvas returns the size of the baseline frame.
func (r *Renderer) Canvas() image.Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.canvas
}

// ExportCurrentFrame encodes the visible frame as PNG.
func (r *Renderer) ExportCurrentFrame() ([]byte, error) {
	f, ok := r.Current()
	if !ok {
		return nil, domain.Validation("export", domain.ErrNothingToExport, "")
	}
	return f.EncodePNG()
}

// Clear drops both buffers. Used on session reset.
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.front, r.back = nil, nil
	r.canvas = image.Point{}
}
