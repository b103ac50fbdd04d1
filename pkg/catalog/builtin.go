package catalog

import "github.com/aretw0/retrofx/pkg/domain"

// Pixelate downsamples the image into blocks and reduces its palette.
var Pixelate = domain.EffectDescriptor{
	ID:          domain.EffectPixelate,
	Label:       "Pixelate",
	Description: "Chunky pixels with a reduced color palette.",
	Parameters: []domain.ParamSpec{
		{Key: "pixel_size", Label: "Pixel size", Kind: domain.KindNumber, Min: domain.Float(5), Max: domain.Float(50), Step: domain.Float(1), Default: 10.0},
		{Key: "palette_size", Label: "Colors", Kind: domain.KindNumber, Min: domain.Float(2), Max: domain.Float(32), Step: domain.Float(1), Default: 16.0},
		{Key: "dither", Label: "Dithering", Kind: domain.KindBoolean, Default: true},
	},
}

// VHS imitates a worn tape: channel offset, noise and scanlines.
var VHS = domain.EffectDescriptor{
	ID:          domain.EffectVHS,
	Label:       "VHS Glitch",
	Description: "Tracking errors, chroma bleed and scanlines.",
	Parameters: []domain.ParamSpec{
		{Key: "intensity", Label: "Intensity", Kind: domain.KindNumber, Min: domain.Float(0), Max: domain.Float(1), Step: domain.Float(0.05), Default: 0.5},
		{Key: "chroma_shift", Label: "Chroma shift", Kind: domain.KindNumber, Min: domain.Float(0), Max: domain.Float(20), Step: domain.Float(1), Default: 4.0},
		{Key: "noise", Label: "Noise", Kind: domain.KindNumber, Min: domain.Float(0), Max: domain.Float(1), Step: domain.Float(0.05), Default: 0.2},
		{Key: "scanlines", Label: "Scanlines", Kind: domain.KindBoolean, Default: true},
	},
}

var builtin = MustNew(Pixelate, VHS)

// Default returns the built-in catalog shared by the whole process.
func Default() *Catalog {
	return builtin
}
