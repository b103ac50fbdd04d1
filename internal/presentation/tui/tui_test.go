package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/retrofx/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogMarkdown(t *testing.T) {
	md := CatalogMarkdown(catalog.Default().List())

	assert.Contains(t, md, "(`pixelate`)")
	assert.Contains(t, md, "(`vhs`)")
	assert.Contains(t, md, "| `pixel_size` | number | 5..50 step 1 | 10 |")
	assert.Contains(t, md, "| `dither` | boolean | - | true |")
}

func TestRenderCatalog_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderCatalog(&buf, catalog.Default().List()))

	assert.Equal(t, CatalogMarkdown(catalog.Default().List()), buf.String())
	assert.False(t, IsTerminal(&buf))
}

func TestPrintBanner_Plain(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0")

	assert.Contains(t, buf.String(), "v0.1.0")
	assert.NotContains(t, buf.String(), "\x1b[")
}
