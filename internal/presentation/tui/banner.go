package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the retrofx banner to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	if !IsTerminal(w) {
		p = termenv.Ascii
	}
	// Synthwave gradient
	lines := []struct {
		text string
		hex  string
	}{
		{"            _              __     ", "#f472b6"},
		{"  _ __ ___ | |_ _ __ ___  / _|_  __", "#e879f9"},
		{" | '__/ _ \\| __| '__/ _ \\| |_\\ \\/ /", "#c084fc"},
		{" | | |  __/| |_| | | (_) |  _|>  < ", "#a78bfa"},
		{" |_|  \\___| \\__|_|  \\___/|_| /_/\\_\\", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.hex)))
	}
	fmt.Fprintln(w, p.String("  retro image effects · v"+version).Faint())
	fmt.Fprintln(w)
}
