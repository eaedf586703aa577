package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"agenttrace/internal/models"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A80")
)

var glyphStyles = []struct {
	glyph string
	style lipgloss.Style
}{
	{models.GlyphSuccess, lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)},
	{models.GlyphFailure, lipgloss.NewStyle().Foreground(colorError).Bold(true)},
	{models.GlyphUnknown, lipgloss.NewStyle().Foreground(colorMuted)},
}

var titleStyle = lipgloss.NewStyle().Bold(true)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// colorize styles the status glyphs and heading of a rendered lineage view.
// Output that is not a lineage rendering passes through unchanged.
func colorize(out string) string {
	if !strings.HasPrefix(out, "TRACE LINEAGE") {
		return out
	}
	lines := strings.Split(out, "\n")
	lines[0] = titleStyle.Render(lines[0])
	for i := 1; i < len(lines); i++ {
		for _, gs := range glyphStyles {
			marker := "[" + gs.glyph + "]"
			if strings.Contains(lines[i], marker) {
				lines[i] = strings.Replace(lines[i], marker, "["+gs.style.Render(gs.glyph)+"]", 1)
			}
		}
	}
	return strings.Join(lines, "\n")
}
