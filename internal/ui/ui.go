// Package ui provides the styled terminal output helpers shared by the
// ontosync commands. Styling degrades to plain text when stdout is not a
// terminal, NO_COLOR is set, or the terminal cannot render color.
package ui

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
	headerStyle = lipgloss.NewStyle().Bold(true)
)

var plainOnce = sync.OnceValue(func() bool {
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return true
	}
	return termenv.ColorProfile() == termenv.Ascii
})

// Plain reports whether styled output is disabled for this process.
func Plain() bool {
	return plainOnce()
}

func render(style lipgloss.Style, s string) string {
	if Plain() {
		return s
	}
	return style.Render(s)
}

// RenderAccent highlights informational markers like spinners and arrows.
func RenderAccent(s string) string {
	return render(accentStyle, s)
}

// RenderPass marks successful results.
func RenderPass(s string) string {
	return render(passStyle, s)
}

// RenderWarn marks degraded but non-fatal results.
func RenderWarn(s string) string {
	return render(warnStyle, s)
}

// RenderError marks failures.
func RenderError(s string) string {
	return render(errorStyle, s)
}

// RenderDim de-emphasizes supplementary detail.
func RenderDim(s string) string {
	return render(dimStyle, s)
}

// RenderHeader emphasizes section titles.
func RenderHeader(s string) string {
	return render(headerStyle, s)
}
