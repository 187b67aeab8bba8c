package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// ColorsEnabled reports whether stdout is an interactive terminal that
// should receive colored output. Respects NO_COLOR (https://no-color.org/)
// and TERM=dumb.
func ColorsEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Init configures the renderer once at startup. Without this, lipgloss
// probes the terminal on first render, which misbehaves under pipes.
func Init() {
	if !ColorsEnabled() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
