package main

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// palette holds the colors used for diagnostics.
type palette struct {
	ok     *color.Color
	fail   *color.Color
	header *color.Color
	insert *color.Color
	remove *color.Color
}

// colorEnabled reports whether w is a terminal and colors were not disabled.
func colorEnabled(w io.Writer, disabled bool) bool {
	if disabled {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newPalette(enabled bool) *palette {
	p := &palette{
		ok:     color.New(color.FgGreen, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		header: color.New(color.FgCyan),
		insert: color.New(color.FgGreen),
		remove: color.New(color.FgRed, color.CrossedOut),
	}
	for _, c := range []*color.Color{p.ok, p.fail, p.header, p.insert, p.remove} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}
