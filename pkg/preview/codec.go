package preview

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/aretw0/retrofx/pkg/domain"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxPixels bounds width*height of any decoded image. The header is checked
// before pixel data is allocated.
const MaxPixels = 40_000_000

// Decode parses PNG, JPEG or WebP bytes. Failures are reported as domain.ErrDecode.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, domain.DecodeFailure("decode", errEmptyImage)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, domain.DecodeFailure("decode", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, domain.DecodeFailure("decode",
			fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxPixels))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.DecodeFailure("decode", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, domain.DecodeFailure("decode", errEmptyImage)
	}
	return img, nil
}

// FitWidth scales img down so it is at most maxWidth wide, keeping the aspect
// ratio. Images already narrow enough are copied unscaled. maxWidth <= 0 disables scaling.
func FitWidth(img image.Image, maxWidth int) *image.NRGBA {
	size := img.Bounds().Size()
	if maxWidth <= 0 || size.X <= maxWidth {
		return Resize(img, size)
	}
	height := int(float64(size.Y)*float64(maxWidth)/float64(size.X) + 0.5)
	if height < 1 {
		height = 1
	}
	return Resize(img, image.Pt(maxWidth, height))
}

// Resize draws img into a new canvas of exactly size.
func Resize(img image.Image, size image.Point) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	if img.Bounds().Size() == size {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
