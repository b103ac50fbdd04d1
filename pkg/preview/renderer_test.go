package preview_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/preview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	sources map[domain.ImageRef][]byte
	results map[string][]byte
	err     error
}

func (f *fakeFetcher) FetchSource(_ context.Context, ref domain.ImageRef) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sources[ref], nil
}

func (f *fakeFetcher) FetchResult(_ context.Context, res domain.RenderableResult) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[res.URL], nil
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestShowSource_ScalesToViewport(t *testing.T) {
	f := &fakeFetcher{sources: map[domain.ImageRef][]byte{
		"cat.png": solidPNG(t, 400, 200, color.White),
	}}
	r := preview.New(f, preview.WithViewportWidth(100))

	require.NoError(t, r.ShowSource(context.Background(), "cat.png"))

	frame, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, preview.KindSource, frame.Kind)
	assert.Equal(t, image.Pt(100, 50), frame.Size())
	assert.Equal(t, image.Pt(100, 50), r.Canvas())
}

func TestShowSource_NeverUpscales(t *testing.T) {
	f := &fakeFetcher{sources: map[domain.ImageRef][]byte{
		"small.png": solidPNG(t, 40, 30, color.White),
	}}
	r := preview.New(f, preview.WithViewportWidth(100))

	require.NoError(t, r.ShowSource(context.Background(), "small.png"))
	frame, _ := r.Current()
	assert.Equal(t, image.Pt(40, 30), frame.Size())
}

func TestShowResult_DrawsAtCanvasSize(t *testing.T) {
	f := &fakeFetcher{
		sources: map[domain.ImageRef][]byte{"cat.png": solidPNG(t, 80, 40, color.White)},
		results: map[string][]byte{"/static/processed/a.png": solidPNG(t, 160, 80, color.Black)},
	}
	r := preview.New(f)
	ctx := context.Background()
	require.NoError(t, r.ShowSource(ctx, "cat.png"))

	require.NoError(t, r.ShowResult(ctx, domain.RenderableResult{URL: "/static/processed/a.png"}))

	frame, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, preview.KindResult, frame.Kind)
	assert.Equal(t, image.Pt(80, 40), frame.Size())
	r0, g0, b0, _ := frame.Image.At(10, 10).RGBA()
	assert.Zero(t, r0+g0+b0)
}

func TestShowResult_DecodeFailureKeepsFrame(t *testing.T) {
	f := &fakeFetcher{
		sources: map[domain.ImageRef][]byte{"cat.png": solidPNG(t, 20, 20, color.White)},
		results: map[string][]byte{"/broken.png": []byte("not an image")},
	}
	r := preview.New(f)
	ctx := context.Background()
	require.NoError(t, r.ShowSource(ctx, "cat.png"))
	before, _ := r.Current()

	err := r.ShowResult(ctx, domain.RenderableResult{URL: "/broken.png"})
	assert.ErrorIs(t, err, domain.ErrDecode)
	assert.Equal(t, domain.KindDecode, domain.KindOf(err))

	after, _ := r.Current()
	assert.Same(t, before, after)
}

func TestShowResult_FetchFailureKeepsFrame(t *testing.T) {
	f := &fakeFetcher{sources: map[domain.ImageRef][]byte{"cat.png": solidPNG(t, 20, 20, color.White)}}
	r := preview.New(f)
	ctx := context.Background()
	require.NoError(t, r.ShowSource(ctx, "cat.png"))
	before, _ := r.Current()

	f.err = errors.New("connection reset")
	assert.Error(t, r.ShowResult(ctx, domain.RenderableResult{URL: "/x.png"}))

	after, _ := r.Current()
	assert.Same(t, before, after)
}

func TestPrepare_DoesNotTouchSurface(t *testing.T) {
	f := &fakeFetcher{sources: map[domain.ImageRef][]byte{"cat.png": solidPNG(t, 20, 20, color.White)}}
	r := preview.New(f)

	frame, err := r.PrepareSource(context.Background(), "cat.png")
	require.NoError(t, err)
	_, ok := r.Current()
	assert.False(t, ok)

	r.Commit(frame)
	cur, ok := r.Current()
	require.True(t, ok)
	assert.Same(t, frame, cur)
}

func TestExportCurrentFrame(t *testing.T) {
	f := &fakeFetcher{sources: map[domain.ImageRef][]byte{"cat.png": solidPNG(t, 30, 10, color.White)}}
	r := preview.New(f)

	_, err := r.ExportCurrentFrame()
	assert.ErrorIs(t, err, domain.ErrNothingToExport)

	require.NoError(t, r.ShowSource(context.Background(), "cat.png"))
	data, err := r.ExportCurrentFrame()
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(30, 10), img.Bounds().Size())

	r.Clear()
	_, err = r.ExportCurrentFrame()
	assert.ErrorIs(t, err, domain.ErrNothingToExport)
}

func TestDecode_JPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 4)), nil))

	img, err := preview.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Pt(8, 4), img.Bounds().Size())
}

func TestDecode_Empty(t *testing.T) {
	_, err := preview.Decode(nil)
	assert.ErrorIs(t, err, domain.ErrDecode)
}

// oversizedPNG rewrites the IHDR of a tiny PNG to claim w x h pixels.
func oversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := solidPNG(t, 1, 1, color.White)
	// 8-byte signature, 4-byte length, then "IHDR" at offset 12.
	require.Equal(t, "IHDR", string(data[12:16]))
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecode_RejectsOversizedHeader(t *testing.T) {
	_, err := preview.Decode(oversizedPNG(t, 40000, 40000))
	assert.ErrorIs(t, err, domain.ErrDecode)
	assert.ErrorContains(t, err, "exceeds")
}

func TestShowSource_OversizedLeavesSurfaceEmpty(t *testing.T) {
	f := &fakeFetcher{sources: map[domain.ImageRef][]byte{"bomb.png": oversizedPNG(t, 1<<16, 1<<16)}}
	r := preview.New(f)

	err := r.ShowSource(context.Background(), "bomb.png")
	assert.ErrorIs(t, err, domain.ErrDecode)
	_, ok := r.Current()
	assert.False(t, ok)
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "retrofx-pixelate.png", preview.ExportFilename(domain.EffectPixelate))
	assert.Equal(t, "retrofx-original.png", preview.ExportFilename(""))
}
