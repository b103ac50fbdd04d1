package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
// When styled is false the markdown is returned untouched.
func NewRenderer(styled bool) func(string) (string, error) {
	if !styled {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// CatalogMarkdown describes the effects as a markdown document.
func CatalogMarkdown(effects []domain.EffectDescriptor) string {
	var b strings.Builder
	b.WriteString("# Effects\n")
	for _, d := range effects {
		fmt.Fprintf(&b, "\n## %s (`%s`)\n\n", d.Label, d.ID)
		if d.Description != "" {
			b.WriteString(d.Description + "\n\n")
		}
		b.WriteString("| Parameter | Type | Range | Default |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, p := range d.Parameters {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %v |\n", p.Key, p.Kind, rangeOf(p), p.Default)
		}
	}
	return b.String()
}

func rangeOf(p domain.ParamSpec) string {
	if p.Kind != domain.KindNumber || p.Min == nil || p.Max == nil {
		return "-"
	}
	r := fmt.Sprintf("%g..%g", *p.Min, *p.Max)
	if p.Step != nil {
		r += fmt.Sprintf(" step %g", *p.Step)
	}
	return r
}

// RenderCatalog writes the effect catalog to w, styled when w is a terminal.
func RenderCatalog(w io.Writer, effects []domain.EffectDescriptor) error {
	out, err := NewRenderer(IsTerminal(w))(CatalogMarkdown(effects))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
