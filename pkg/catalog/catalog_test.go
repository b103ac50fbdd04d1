package catalog_test

import (
	"testing"

	"github.com/aretw0/retrofx/pkg/catalog"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_PixelateInstance(t *testing.T) {
	inst, err := catalog.Default().DefaultInstance(domain.EffectPixelate)
	require.NoError(t, err)

	assert.Equal(t, domain.EffectPixelate, inst.EffectID)
	assert.Equal(t, map[string]any{
		"pixel_size":   10.0,
		"palette_size": 16.0,
		"dither":       true,
	}, inst.Params)
}

func TestDefaultInstance_IsFresh(t *testing.T) {
	c := catalog.Default()
	a, err := c.DefaultInstance(domain.EffectVHS)
	require.NoError(t, err)
	a.Params["noise"] = 1.0

	b, err := c.DefaultInstance(domain.EffectVHS)
	require.NoError(t, err)
	assert.Equal(t, 0.2, b.Params["noise"])
}

func TestDescriptorOf_Unknown(t *testing.T) {
	_, err := catalog.Default().DescriptorOf("sepia")
	assert.ErrorIs(t, err, domain.ErrUnknownEffect)

	_, err = catalog.Default().DefaultInstance("sepia")
	assert.ErrorIs(t, err, domain.ErrUnknownEffect)
}

func TestList_PreservesOrder(t *testing.T) {
	list := catalog.Default().List()
	require.Len(t, list, 2)
	assert.Equal(t, domain.EffectPixelate, list[0].ID)
	assert.Equal(t, domain.EffectVHS, list[1].ID)

	// Mutating the returned slice must not leak into the catalog.
	list[0].Parameters[0].Key = "size"
	d, err := catalog.Default().DescriptorOf(domain.EffectPixelate)
	require.NoError(t, err)
	_, ok := d.Param("pixel_size")
	assert.True(t, ok)
}

func TestNew_RejectsInvalidDescriptors(t *testing.T) {
	tests := []struct {
		name string
		desc domain.EffectDescriptor
	}{
		{"empty id", domain.EffectDescriptor{}},
		{"default out of bounds", domain.EffectDescriptor{ID: "x", Parameters: []domain.ParamSpec{
			{Key: "a", Kind: domain.KindNumber, Min: domain.Float(0), Max: domain.Float(1), Default: 2.0},
		}}},
		{"bool default mismatch", domain.EffectDescriptor{ID: "x", Parameters: []domain.ParamSpec{
			{Key: "a", Kind: domain.KindBoolean, Default: 1.0},
		}}},
		{"duplicate key", domain.EffectDescriptor{ID: "x", Parameters: []domain.ParamSpec{
			{Key: "a", Kind: domain.KindBoolean, Default: true},
			{Key: "a", Kind: domain.KindBoolean, Default: false},
		}}},
		{"zero step", domain.EffectDescriptor{ID: "x", Parameters: []domain.ParamSpec{
			{Key: "a", Kind: domain.KindNumber, Step: domain.Float(0), Default: 1.0},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.New(tt.desc)
			assert.Error(t, err)
		})
	}

	_, err := catalog.New(catalog.Pixelate, catalog.Pixelate)
	assert.Error(t, err)
}
