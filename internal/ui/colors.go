// Package ui provides terminal output formatting for the stratum CLI:
// colored status lines, error rendering, and TTY detection.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Lipgloss styles for consistent terminal output
var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // Green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // Red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // Yellow
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // Blue
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // Gray
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

// Themed status functions
func Success(text string) string { return successStyle.Render("✓ " + text) }
func Error(text string) string   { return errorStyle.Render("✗ " + text) }
func Warning(text string) string { return warningStyle.Render("⚠ " + text) }
func Info(text string) string    { return infoStyle.Render("ℹ " + text) }

// Basic color functions
func Green(text string) string  { return successStyle.Render(text) }
func Red(text string) string    { return errorStyle.Render(text) }
func Yellow(text string) string { return warningStyle.Render(text) }
func Blue(text string) string   { return infoStyle.Render(text) }
func Dim(text string) string    { return dimStyle.Render(text) }
func Bold(text string) string   { return boldStyle.Render(text) }

// FilePath highlights a filesystem path.
func FilePath(path string) string { return infoStyle.Render(path) }
