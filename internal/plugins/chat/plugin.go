// Package chat is the chat list plugin: it feeds a source into the list
// engine, renders the visible rows and reports their heights back.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/chatview/internal/chatlist"
	"github.com/marcus/chatview/internal/config"
	"github.com/marcus/chatview/internal/keymap"
	"github.com/marcus/chatview/internal/layout"
	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/plugin"
	"github.com/marcus/chatview/internal/schedule"
	"github.com/marcus/chatview/internal/source"
	"github.com/marcus/chatview/internal/state"
	"github.com/marcus/chatview/internal/ui"
)

const (
	pluginID   = "chat"
	pluginName = "Chat"
	pluginIcon = "💬"

	// Focus contexts
	contextList = "chat"
	contextJump = "chat-jump"

	// maxBatch bounds how many queued source events one update applies.
	maxBatch = 64

	wheelStep = 3
)

// Scheduler is the event-loop scheduler the plugin drives the engine with.
// schedule.Loop implements it.
type Scheduler interface {
	schedule.Scheduler
	Cmd() tea.Cmd
	Handle(schedule.FireMsg) bool
	Close()
}

// Plugin implements the chat list.
type Plugin struct {
	ctx    *plugin.Context
	logger *slog.Logger
	keys   *keymap.Registry

	sched  Scheduler
	list   *chatlist.Controller
	layout *layout.Service
	buf    *message.Buffer

	src    source.Source
	cancel context.CancelFunc
	events <-chan source.Event

	channel  string
	focused  bool
	width    int
	height   int
	selected string
	prompt   ui.Prompt

	// frame is the last painted viewport, one string per row.
	frame []string
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithScheduler replaces the tea.Tick backed scheduler.
func WithScheduler(s Scheduler) Option {
	return func(p *Plugin) { p.sched = s }
}

// New creates the chat plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		prompt: ui.NewPrompt("Jump to message", "message id", "enter jump · esc cancel"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string { return pluginID }

// Name returns the plugin display name.
func (p *Plugin) Name() string { return pluginName }

// Icon returns the plugin icon character.
func (p *Plugin) Icon() string { return pluginIcon }

// Init wires the engine to the context's source and settings.
func (p *Plugin) Init(ctx *plugin.Context) error {
	if ctx == nil || ctx.Source == nil {
		return fmt.Errorf("chat: no message source")
	}
	cfg := ctx.Config
	if cfg == nil {
		cfg = config.Default()
	}
	p.ctx = ctx
	p.src = ctx.Source
	p.logger = ctx.Logger
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	p.keys = ctx.Keymap
	if p.keys == nil {
		p.keys = keymap.NewRegistry()
		keymap.RegisterDefaults(p.keys)
	}

	lay, err := layout.New(layout.DefaultCacheSize)
	if err != nil {
		return fmt.Errorf("chat: layout: %w", err)
	}
	timestamps := state.GetShowTimestamps(cfg.UI.ShowTimestamps)
	lay.SetTimestamps(timestamps)
	p.layout = lay

	if p.sched == nil {
		p.sched = schedule.NewLoop(schedule.DefaultFrameInterval)
	}
	lc := cfg.Chat.ListConfig()
	lc.Timestamps = timestamps
	p.list = chatlist.New(lc, p.sched, lay)
	if ctx.Metrics != nil {
		p.list.SetRecorder(ctx.Metrics)
	}
	p.buf = message.NewBuffer(cfg.Chat.BufferSize)

	p.channel = cfg.Source.Channel
	if p.channel == "" {
		p.channel = state.GetLastChannel()
	}
	if ctx.Cosmetics != nil {
		ctx.Cosmetics.Reset(p.channel)
	}

	for _, c := range p.Commands() {
		p.keys.RegisterCommand(keymap.Command{ID: c.ID, Name: c.Name, Context: c.Context, Handler: c.Handler})
	}
	return nil
}

// Start backfills the list and begins watching the source.
func (p *Plugin) Start() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	return p.load(ctx, p.ctx.Epoch)
}

// Stop cancels the source watch and drops every pending timer.
func (p *Plugin) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.list != nil {
		p.list.Close()
	}
	if p.sched != nil {
		p.sched.Close()
	}
}

// IsFocused returns whether the plugin is focused.
func (p *Plugin) IsFocused() bool { return p.focused }

// SetFocused sets the focus state.
func (p *Plugin) SetFocused(f bool) { p.focused = f }

// FocusContext returns the current focus context.
func (p *Plugin) FocusContext() string {
	if p.prompt.IsOpen() {
		return contextJump
	}
	return contextList
}

// ConsumesTextInput reports whether the jump prompt has the keyboard.
func (p *Plugin) ConsumesTextInput() bool { return p.prompt.IsOpen() }

// Controller exposes the list engine.
func (p *Plugin) Controller() *chatlist.Controller { return p.list }

// Channel returns the channel being shown.
func (p *Plugin) Channel() string { return p.channel }

// Status implements plugin.StatusProvider.
func (p *Plugin) Status() plugin.Status {
	st := p.list.State()
	s := plugin.Status{Channel: p.channel, Live: !st.Paused}
	if st.InitialLoad {
		s.Detail = "loading"
	}
	return s
}

// Diagnostics implements plugin.DiagnosticProvider.
func (p *Plugin) Diagnostics() []plugin.Diagnostic {
	st := p.list.State()
	mode := "following"
	switch {
	case st.Paused:
		mode = "paused"
	case !st.AutoFollowing:
		mode = "scrolled"
	}
	d := []plugin.Diagnostic{
		{ID: "source", Status: "ok", Detail: p.src.Kind()},
		{ID: "messages", Status: "ok", Detail: fmt.Sprintf("%d / %d", p.buf.Len(), p.buf.Cap())},
		{ID: "scroll", Status: mode, Detail: fmt.Sprintf("offset %d of %d", p.list.List().Offset(), p.list.List().ScrollHeight())},
		{ID: "heights", Status: "ok", Detail: fmt.Sprintf("%d known, %d laid out", p.list.Oracle().Records(), p.layout.CacheLen())},
		{ID: "jump", Status: string(p.list.JumpPhase())},
	}
	if p.ctx.Cosmetics != nil {
		d = append(d, plugin.Diagnostic{ID: "cosmetics", Status: "ok", Detail: fmt.Sprintf("%d cached", p.ctx.Cosmetics.Len())})
	}
	return d
}
