package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/marcus/chatview/internal/layout"
	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/styles"
	"github.com/marcus/chatview/internal/ui"
)

// paint renders the visible window and reports each row's real height. Rows
// are drawn at the size the list laid them out with; a differing report
// corrects the layout on the next frame.
func (p *Plugin) paint() {
	if p.height <= 0 || p.width <= 0 {
		p.frame = nil
		return
	}
	lines := make([]string, 0, p.height)
	highlighted := p.list.Highlighted()
	for _, r := range p.list.List().Visible() {
		e, ok := p.list.Entry(r.Index)
		if !ok {
			continue
		}
		deleted := p.list.IsDeleted(r.Index)
		b := p.layout.Rows(e, deleted)
		p.list.RowRendered(r.Index, b.Height(), deleted)

		row := renderBlock(e, b, deleted)
		row = fitRows(row, r.Height)
		switch {
		case e.ID != "" && e.ID == highlighted:
			row = paintRows(row, styles.Highlight, p.width)
		case e.ID != "" && e.ID == p.selected:
			row = paintRows(row, styles.Selected, p.width)
		}
		if r.Top < 0 {
			row = row[min(-r.Top, len(row)):]
		}
		lines = append(lines, row...)
		if len(lines) >= p.height {
			break
		}
	}
	p.frame = fitRows(lines, p.height)
}

// renderBlock styles a composed row. It returns exactly b.Height() lines.
func renderBlock(e message.Entry, b layout.Block, deleted bool) []string {
	if deleted {
		return []string{styles.Deleted.Render(b.Lines[0])}
	}
	var out []string
	if b.Reply != "" {
		out = append(out, styles.ReplyHeader.Render(b.Reply))
	}
	if b.Banner != "" {
		out = append(out, styles.FirstMessage.Render(b.Banner))
	}
	for i, line := range b.Lines {
		if i == 0 && b.Prefix != "" && strings.HasPrefix(line, b.Prefix) {
			line = styledPrefix(e, b) + styles.Body.Render(line[len(b.Prefix):])
		} else {
			line = styles.Body.Render(line)
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		out = append(out, "")
	}
	return out
}

func styledPrefix(e message.Entry, b layout.Block) string {
	var sb strings.Builder
	if b.Stamp != "" {
		sb.WriteString(styles.Timestamp.Render(b.Stamp))
	}
	if b.Glyph != "" {
		sb.WriteString(styles.Badge.Render(b.Glyph))
	}
	if b.Name != "" {
		sb.WriteString(styles.Author(e.Color, e.Login).Render(b.Name))
	}
	return sb.String()
}

// fitRows pads or cuts lines to exactly n.
func fitRows(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return lines
}

// paintRows applies a background across the full width of each line.
func paintRows(lines []string, st lipgloss.Style, width int) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		plain := ansi.Strip(line)
		if pad := width - ansi.StringWidth(plain); pad > 0 {
			plain += strings.Repeat(" ", pad)
		}
		out[i] = st.Render(plain)
	}
	return out
}

// View renders the plugin.
func (p *Plugin) View(width, height int) string {
	frame := fitRows(append([]string(nil), p.frame...), height)
	content := strings.Join(frame, "\n")

	if bar := p.bottomBar(width); bar != "" {
		content = ui.OverlayBottom(content, bar, width, height)
	}
	if p.prompt.IsOpen() {
		content = ui.OverlayModal(content, p.prompt.View(width), width, height)
	}
	return content
}

// bottomBar returns the selection details and, while paused, the unseen
// banner.
func (p *Plugin) bottomBar(width int) string {
	var parts []string
	if d := p.selectionDetail(); d != "" {
		parts = append(parts, styles.Muted.Render(ansi.Truncate(d, width, "…")))
	}
	if p.list.State().Paused {
		parts = append(parts, styles.Unseen.Render(ansi.Truncate(unseenText(p.list.Unseen()), width, "…")))
	}
	return strings.Join(parts, "\n")
}

func unseenText(n int) string {
	switch n {
	case 0:
		return " Paused · G to resume "
	case 1:
		return " ↓ 1 new message · G to resume "
	default:
		return fmt.Sprintf(" ↓ %s new messages · G to resume ", humanize.Comma(int64(n)))
	}
}

// selectionDetail describes the selected message.
func (p *Plugin) selectionDetail() string {
	i, ok := p.selectedIndex()
	if !ok {
		return ""
	}
	e, _ := p.list.Entry(i)
	parts := []string{}
	if name := e.Author(); name != "" {
		parts = append(parts, "@"+name)
	}
	if p.ctx.Cosmetics != nil {
		for _, b := range e.Badges {
			parts = append(parts, p.ctx.Cosmetics.Badge(b).Title)
		}
		if url := p.ctx.Cosmetics.ProfileImage(e.UserID); url != "" {
			parts = append(parts, url)
		}
	}
	if !e.Timestamp.IsZero() {
		parts = append(parts, humanize.Time(e.Timestamp))
	}
	parts = append(parts, "id "+e.ID)
	return " " + strings.Join(parts, " · ")
}
