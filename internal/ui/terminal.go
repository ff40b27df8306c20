package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// ConfigureColor picks the color profile for output written to w.
func ConfigureColor(w io.Writer, noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !IsTerminal(w) {
		DisableColors()
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
}

// DisableColors switches all rendering to plain text.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// TerminalWidth returns the width of w, or fallback when it is not a terminal.
func TerminalWidth(w io.Writer, fallback int) int {
	f, ok := w.(*os.File)
	if !ok {
		return fallback
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}
