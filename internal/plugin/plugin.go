package plugin

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/chatview/internal/config"
	"github.com/marcus/chatview/internal/cosmetics"
	"github.com/marcus/chatview/internal/keymap"
	"github.com/marcus/chatview/internal/metrics"
	"github.com/marcus/chatview/internal/source"
)

// Plugin defines the interface for all chatview plugins.
type Plugin interface {
	ID() string
	Name() string
	Icon() string
	Init(ctx *Context) error
	Start() tea.Cmd
	Stop()
	Update(msg tea.Msg) (Plugin, tea.Cmd)
	View(width, height int) string
	IsFocused() bool
	SetFocused(bool)
	Commands() []Command
	FocusContext() string
}

// Context is handed to every plugin on Init.
type Context struct {
	ConfigDir string
	Config    *config.Config
	Logger    *slog.Logger
	Source    source.Source
	Cosmetics *cosmetics.Store
	Keymap    *keymap.Registry
	Metrics   *metrics.Engine
	// Epoch is bumped on every channel switch.
	Epoch uint64
}

// TextInputConsumer is an optional capability for plugins that need
// alphanumeric key input to be forwarded as typed text instead of being
// intercepted by app-level shortcuts.
type TextInputConsumer interface {
	ConsumesTextInput() bool
}

// Category represents a logical grouping of commands.
type Category string

const (
	CategoryNavigation Category = "Navigation"
	CategoryActions    Category = "Actions"
	CategoryView       Category = "View"
	CategorySystem     Category = "System"
)

// Command represents a keybinding command exposed by a plugin.
type Command struct {
	ID          string         // Unique identifier (e.g., "jump-to-parent")
	Name        string         // Short name for footer (e.g., "Parent")
	Description string         // Full description for help
	Category    Category       // Logical grouping
	Handler     func() tea.Cmd // Action to execute (optional)
	Context     string         // Activation context
	Priority    int            // Footer display priority: 1=highest, 0=default (treated as 99)
}

// DiagnosticProvider is implemented by plugins that expose diagnostics.
type DiagnosticProvider interface {
	Diagnostics() []Diagnostic
}

// Diagnostic represents a health/status check result.
type Diagnostic struct {
	ID     string
	Status string
	Detail string
}

// ResizeMsg gives a plugin the size of its content area.
type ResizeMsg struct {
	Width  int
	Height int
}

// Status is what the header shows for the active plugin.
type Status struct {
	Channel string
	Live    bool
	Detail  string
}

// StatusProvider is implemented by plugins that feed the header.
type StatusProvider interface {
	Status() Status
}

// PluginFocusedMsg is sent to a plugin when it becomes the active plugin.
type PluginFocusedMsg struct{}

// EpochMessage is implemented by async messages that need staleness detection.
// Messages from async operations should embed an Epoch field and implement this interface.
type EpochMessage interface {
	GetEpoch() uint64
}

// IsStale returns true if the message's epoch doesn't match the current context epoch.
// Use this in Update() handlers to discard messages from a previous channel:
//
//	if plugin.IsStale(p.ctx, msg) { return p, nil }
func IsStale(ctx *Context, msg EpochMessage) bool {
	return ctx != nil && msg.GetEpoch() != ctx.Epoch
}
