// Package ui provides shared UI components and helpers for the TUI.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// DimStyle greys out the chat behind a modal. Existing ANSI codes are
// stripped first because SGR 2 (faint) doesn't combine with colors in most
// terminals.
var DimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

// blockWidth returns the widest visual line.
func blockWidth(lines []string) int {
	w := 0
	for _, line := range lines {
		w = max(w, ansi.StringWidth(line))
	}
	return w
}

func dimLine(s string) string {
	return DimStyle.Render(ansi.Strip(s))
}

// splice replaces the columns [x, x+w) of bg with box. With dim set, the
// remaining background is greyed out; otherwise it keeps its styling.
func splice(bg, box string, x, w int, dim bool) string {
	var b strings.Builder
	render := func(s string) string {
		if dim {
			return DimStyle.Render(ansi.Strip(s))
		}
		return s
	}

	bgWidth := ansi.StringWidth(bg)
	if x > 0 {
		left := ansi.Truncate(bg, x, "")
		b.WriteString(render(left))
		if lw := ansi.StringWidth(left); lw < x {
			b.WriteString(strings.Repeat(" ", x-lw))
		}
	}
	b.WriteString(box)
	if right := x + w; bgWidth > right {
		b.WriteString(render(ansi.Cut(bg, right, bgWidth)))
	}
	return b.String()
}

// Place draws box over background with its top row at y, horizontally
// centered. The result always has height lines.
func Place(background, box string, width, height, y int, dim bool) string {
	bgLines := strings.Split(background, "\n")
	boxLines := strings.Split(box, "\n")
	for len(bgLines) < height {
		bgLines = append(bgLines, "")
	}

	w := blockWidth(boxLines)
	x := max(0, (width-w)/2)
	y = max(0, y)

	out := make([]string, 0, height)
	for row := range height {
		line := bgLines[row]
		i := row - y
		switch {
		case i >= 0 && i < len(boxLines):
			out = append(out, splice(line, boxLines[i], x, w, dim))
		case dim:
			out = append(out, dimLine(line))
		default:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// OverlayModal centers modal over a dimmed background.
func OverlayModal(background, modal string, width, height int) string {
	h := strings.Count(modal, "\n") + 1
	return Place(background, modal, width, height, (height-h)/2, true)
}

// OverlayBottom draws bar over the last lines of background, leaving the rest
// untouched.
func OverlayBottom(background, bar string, width, height int) string {
	h := strings.Count(bar, "\n") + 1
	return Place(background, bar, width, height, height-h, false)
}
