package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/chatview/internal/keymap"
	"github.com/marcus/chatview/internal/msg"
)

// Update handles all messages and returns the updated model and commands.
func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(message)

	case tea.MouseMsg:
		return m.handleMouse(message)

	case tea.WindowSizeMsg:
		m.width = message.Width
		m.height = message.Height
		m.ready = true
		return m, m.resize()

	case TickMsg:
		m.clock = time.Time(message)
		m.ClearToast()
		return m, tickCmd()

	case msg.ToastMsg:
		m.ShowToast(message)
		return m, nil

	case ToggleFooterMsg:
		m.showFooter = !m.showFooter
		return m, m.resize()

	case msg.ToggleHelpMsg:
		m.showHelp = !m.showHelp
		m.showDiagnostics = false
		return m, nil

	case ToggleDiagnosticsMsg:
		m.showDiagnostics = !m.showDiagnostics
		m.showHelp = false
		return m, nil

	case msg.ChannelMsg:
		m.logger.Info("channel switched", "channel", message.Channel)
		title := "chatview"
		if ctx := m.registry.Context(); ctx != nil && ctx.Cosmetics != nil && message.Channel != "" {
			title += " · " + ctx.Cosmetics.ChannelName(message.Channel)
		}
		return m, tea.Batch(tea.SetWindowTitle(title), m.forward(message))
	}

	return m, m.forward(message)
}

// forward hands a message to every plugin. Plugins drop what they do not
// handle.
func (m *Model) forward(message tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for _, p := range m.registry.Plugins() {
		if _, cmd := p.Update(message); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	m.updateContext()
	return tea.Batch(cmds...)
}

// handleKeyMsg routes keys. Plugins resolve their own bindings through the
// shared registry, which falls back to the global context.
func (m Model) handleKeyMsg(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if k.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.hasModal() {
		switch k.String() {
		case "esc", "q", "?", "!":
			m.showHelp = false
			m.showDiagnostics = false
		}
		return m, nil
	}

	p := m.ActivePlugin()
	if p == nil {
		cmd, _ := m.keymap.Handle(k, keymap.GlobalContext)
		return m, cmd
	}

	_, cmd := p.Update(k)
	m.updateContext()
	return m, cmd
}

// handleMouse translates terminal coordinates into the content area.
func (m Model) handleMouse(mm tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.hasModal() {
		return m, nil
	}
	p := m.ActivePlugin()
	if p == nil {
		return m, nil
	}
	mm.Y -= headerHeight
	if mm.Y < 0 || mm.Y >= m.contentHeight() {
		return m, nil
	}
	_, cmd := p.Update(mm)
	m.updateContext()
	return m, cmd
}
