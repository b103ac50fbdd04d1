package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/aretw0/retrofx/pkg/domain"
)

// Kind tells whether a frame shows the uploaded original or a processed result.
type Kind string

const (
	KindSource Kind = "source"
	KindResult Kind = "result"
)

// Frame is a fully decoded, display-sized image ready to become visible.
type Frame struct {
	Kind   Kind
	Image  image.Image
	Origin string // ImageRef or processed URL the frame was loaded from
	// Effect produced a result frame; empty for source frames.
	Effect domain.EffectID
}

// Size returns the frame dimensions in pixels.
func (f *Frame) Size() image.Point {
	return f.Image.Bounds().Size()
}

// EncodePNG renders the frame as PNG bytes.
func (f *Frame) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Image); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename derives the download name from the active effect.
func ExportFilename(effect domain.EffectID) string {
	if effect == "" {
		return "retrofx-original.png"
	}
	return "retrofx-" + string(effect) + ".png"
}
