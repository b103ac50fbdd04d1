package testutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/aretw0/retrofx/pkg/domain"
)

// PNG encodes a solid w x h image.
func PNG(w, h int, c color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Key identifies an effect instance by its id and parameter values.
func Key(inst domain.EffectInstance) string {
	return string(inst.EffectID) + fmt.Sprint(inst.Params)
}

// FakeService is an in-memory image service implementing the upload,
// processing and fetch ports. Processing calls can be held back per
// instance to force responses to arrive out of order.
type FakeService struct {
	mu      sync.Mutex
	sources map[domain.ImageRef][]byte
	results map[string][]byte
	holds   map[string]chan error
	counter int

	// UploadErr and ProcessErr make the respective call fail when set.
	UploadErr  error
	ProcessErr error
	// CorruptResults makes processed images undecodable.
	CorruptResults bool

	Uploads   int
	Processed int
}

// NewFakeService creates an empty service.
func NewFakeService() *FakeService {
	return &FakeService{
		sources: make(map[domain.ImageRef][]byte),
		results: make(map[string][]byte),
		holds:   make(map[string]chan error),
	}
}

// SetProcessErr makes every later processing call fail with err.
func (f *FakeService) SetProcessErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProcessErr = err
}

// Hold blocks processing of inst until the returned release is called.
// Releasing with an error fails that call.
func (f *FakeService) Hold(inst domain.EffectInstance) func(error) {
	ch := make(chan error, 1)
	f.mu.Lock()
	f.holds[Key(inst)] = ch
	f.mu.Unlock()
	return func(err error) { ch <- err }
}

func (f *FakeService) Upload(ctx context.Context, filename string, data []byte) (domain.ImageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Uploads++
	if f.UploadErr != nil {
		return "", domain.UploadFailure("upload", f.UploadErr)
	}
	ref := domain.ImageRef(filename)
	f.sources[ref] = data
	return ref, nil
}

func (f *FakeService) Process(ctx context.Context, ref domain.ImageRef, inst domain.EffectInstance) (domain.RenderableResult, error) {
	f.mu.Lock()
	hold := f.holds[Key(inst)]
	delete(f.holds, Key(inst))
	f.mu.Unlock()

	if hold != nil {
		select {
		case err := <-hold:
			if err != nil {
				return domain.RenderableResult{}, domain.ProcessingFailure("process", err)
			}
		case <-ctx.Done():
			return domain.RenderableResult{}, domain.ProcessingFailure("process", ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Processed++
	if f.ProcessErr != nil {
		return domain.RenderableResult{}, domain.ProcessingFailure("process", f.ProcessErr)
	}
	src, ok := f.sources[ref]
	if !ok {
		return domain.RenderableResult{}, domain.ProcessingFailure("process", errors.New("File not found"))
	}

	f.counter++
	url := fmt.Sprintf("/static/processed/%d_%s", f.counter, ref)
	if f.CorruptResults {
		f.results[url] = []byte("garbage")
	} else {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
		if err != nil {
			return domain.RenderableResult{}, domain.ProcessingFailure("process", err)
		}
		f.results[url] = PNG(cfg.Width, cfg.Height, color.Black)
	}
	return domain.RenderableResult{URL: url}, nil
}

func (f *FakeService) FetchSource(ctx context.Context, ref domain.ImageRef) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.sources[ref]
	if !ok {
		return nil, domain.UploadFailure("fetch source", errors.New("not found"))
	}
	return data, nil
}

func (f *FakeService) FetchResult(ctx context.Context, res domain.RenderableResult) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.results[res.URL]
	if !ok {
		return nil, domain.ProcessingFailure("fetch result", errors.New("not found"))
	}
	return data, nil
}
