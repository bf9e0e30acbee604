package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/chatview/internal/keymap"
	"github.com/marcus/chatview/internal/msg"
	"github.com/marcus/chatview/internal/plugin"
)

// Message types for tea.Cmd
type (
	// TickMsg is sent on each clock tick.
	TickMsg time.Time

	// ToggleFooterMsg shows or hides the footer.
	ToggleFooterMsg struct{}

	// ToggleDiagnosticsMsg shows or hides the diagnostics overlay.
	ToggleDiagnosticsMsg struct{}
)

// tickCmd returns a command that ticks every second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// PluginFocused returns a command that sends PluginFocusedMsg.
func PluginFocused() tea.Cmd {
	return func() tea.Msg {
		return plugin.PluginFocusedMsg{}
	}
}

func send(m tea.Msg) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg { return m }
	}
}

// registerGlobalCommands installs the app-level handlers. Plugins resolve
// keys through the same registry, so global keys work from any context.
func registerGlobalCommands(km *keymap.Registry) {
	for _, c := range []keymap.Command{
		{ID: "quit", Name: "quit", Handler: func() tea.Cmd { return tea.Quit }},
		{ID: "toggle-footer", Name: "footer", Handler: send(ToggleFooterMsg{})},
		{ID: "toggle-help", Name: "help", Handler: send(msg.ToggleHelpMsg{})},
		{ID: "toggle-diagnostics", Name: "diagnostics", Handler: send(ToggleDiagnosticsMsg{})},
	} {
		c.Context = keymap.GlobalContext
		km.RegisterCommand(c)
	}
}
