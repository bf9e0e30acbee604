package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/chatview/internal/styles"
)

// Prompt is a single-line input modal.
type Prompt struct {
	Title string
	Hint  string
	input textinput.Model
	open  bool
}

// NewPrompt creates a closed prompt.
func NewPrompt(title, placeholder, hint string) Prompt {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "> "
	ti.CharLimit = 128
	ti.Width = 40
	return Prompt{Title: title, Hint: hint, input: ti}
}

// Open shows the prompt with an empty, focused input.
func (p *Prompt) Open() tea.Cmd {
	p.open = true
	p.input.SetValue("")
	return p.input.Focus()
}

// Close hides the prompt.
func (p *Prompt) Close() {
	p.open = false
	p.input.Blur()
}

// IsOpen reports whether the prompt is shown.
func (p *Prompt) IsOpen() bool { return p.open }

// Value returns the trimmed input.
func (p *Prompt) Value() string { return strings.TrimSpace(p.input.Value()) }

// SetValue replaces the input.
func (p *Prompt) SetValue(s string) { p.input.SetValue(s) }

// Update forwards msg to the input while open.
func (p *Prompt) Update(msg tea.Msg) tea.Cmd {
	if !p.open {
		return nil
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

// View renders the prompt box sized for a screen of width columns.
func (p *Prompt) View(width int) string {
	p.input.Width = min(40, max(10, width-12))
	parts := []string{styles.ModalTitle.Render(p.Title), p.input.View()}
	if p.Hint != "" {
		parts = append(parts, "", styles.Muted.Render(p.Hint))
	}
	return styles.ModalBox.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
