package app

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/chatview/internal/config"
	"github.com/marcus/chatview/internal/keymap"
	"github.com/marcus/chatview/internal/msg"
	"github.com/marcus/chatview/internal/plugin"
)

// ModalKind identifies an app-level modal with explicit priority ordering.
// Lower values = higher priority (checked first for rendering and input routing).
type ModalKind int

const (
	ModalNone        ModalKind = iota // No modal open
	ModalHelp                         // Help overlay
	ModalDiagnostics                  // Diagnostics
)

// activeModal returns the highest-priority open modal.
func (m *Model) activeModal() ModalKind {
	switch {
	case m.showHelp:
		return ModalHelp
	case m.showDiagnostics:
		return ModalDiagnostics
	default:
		return ModalNone
	}
}

func (m *Model) hasModal() bool {
	return m.activeModal() != ModalNone
}

// Model is the root Bubble Tea model for chatview.
type Model struct {
	cfg    *config.Config
	logger *slog.Logger

	// Plugin management
	registry     *plugin.Registry
	activePlugin int

	// Keymap
	keymap        *keymap.Registry
	activeContext string

	// UI state
	width, height   int
	showHelp        bool
	showDiagnostics bool
	showFooter      bool
	clock           time.Time

	// Status/toast messages
	statusMsg     string
	statusExpiry  time.Time
	statusIsError bool

	ready   bool
	version string
}

// New creates the application model and registers the global commands.
func New(reg *plugin.Registry, km *keymap.Registry, cfg *config.Config, version string) Model {
	registerGlobalCommands(km)

	logger := slog.New(slog.DiscardHandler)
	if ctx := reg.Context(); ctx != nil && ctx.Logger != nil {
		logger = ctx.Logger
	}
	showFooter := true
	if cfg != nil {
		showFooter = cfg.UI.ShowFooter
	}
	return Model{
		cfg:           cfg,
		logger:        logger,
		registry:      reg,
		keymap:        km,
		activeContext: keymap.GlobalContext,
		showFooter:    showFooter,
		clock:         time.Now(),
		version:       version,
	}
}

// Init starts the clock and every registered plugin.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(), tea.SetWindowTitle("chatview")}
	for _, cmd := range m.registry.Start() {
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	if p := m.ActivePlugin(); p != nil {
		p.SetFocused(true)
		cmds = append(cmds, PluginFocused())
	}
	return tea.Batch(cmds...)
}

// ActivePlugin returns the currently active plugin.
func (m Model) ActivePlugin() plugin.Plugin {
	plugins := m.registry.Plugins()
	if len(plugins) == 0 {
		return nil
	}
	if m.activePlugin >= len(plugins) {
		return plugins[0]
	}
	return plugins[m.activePlugin]
}

// updateContext refreshes the key context from the active plugin.
func (m *Model) updateContext() {
	m.activeContext = keymap.GlobalContext
	if p := m.ActivePlugin(); p != nil {
		if ctx := p.FocusContext(); ctx != "" {
			m.activeContext = ctx
		}
	}
}

// ShowToast displays a temporary status message.
func (m *Model) ShowToast(t msg.ToastMsg) {
	d := t.Duration
	if d <= 0 {
		d = msg.DefaultToastDuration
	}
	m.statusMsg = t.Message
	m.statusExpiry = time.Now().Add(d)
	m.statusIsError = t.IsError
}

// ClearToast clears an expired status message.
func (m *Model) ClearToast() {
	if m.statusMsg != "" && time.Now().After(m.statusExpiry) {
		m.statusMsg = ""
		m.statusIsError = false
	}
}

// contentHeight is the height plugins render into.
func (m Model) contentHeight() int {
	h := m.height - headerHeight
	if m.showFooter {
		h -= footerHeight
	}
	return max(h, 0)
}

// resize tells every plugin the size of the content area.
func (m Model) resize() tea.Cmd {
	rm := plugin.ResizeMsg{Width: m.width, Height: m.contentHeight()}
	var cmds []tea.Cmd
	for _, p := range m.registry.Plugins() {
		if _, cmd := p.Update(rm); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}
