// Package msg holds tea messages shared between the app and its plugins.
package msg

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultToastDuration is used when a toast does not set one.
const DefaultToastDuration = 3 * time.Second

// ToastMsg displays a temporary message.
type ToastMsg struct {
	Message  string
	Duration time.Duration
	IsError  bool // true for error toasts (red), false for success (green)
}

// ShowToast returns a command to show a toast message.
func ShowToast(message string, duration time.Duration) tea.Cmd {
	return func() tea.Msg {
		return ToastMsg{
			Message:  message,
			Duration: duration,
		}
	}
}

// ShowError returns a command to show an error toast.
func ShowError(message string) tea.Cmd {
	return func() tea.Msg {
		return ToastMsg{
			Message:  message,
			Duration: 5 * time.Second,
			IsError:  true,
		}
	}
}

// ChannelMsg reports that the chat switched channels.
type ChannelMsg struct {
	Channel string
}

// ToggleHelpMsg asks the app to show or hide the key help.
type ToggleHelpMsg struct{}
