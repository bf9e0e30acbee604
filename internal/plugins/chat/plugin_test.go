package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/chatview/internal/config"
	"github.com/marcus/chatview/internal/cosmetics"
	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/msg"
	"github.com/marcus/chatview/internal/plugin"
	"github.com/marcus/chatview/internal/schedule"
	"github.com/marcus/chatview/internal/source"
	"github.com/marcus/chatview/internal/state"
)

type manualSched struct{ *schedule.Manual }

func (manualSched) Cmd() tea.Cmd { return nil }

func (manualSched) Handle(schedule.FireMsg) bool { return false }

type fakeSource struct {
	backfill []message.Message
	events   chan source.Event
	err      error
}

func (s *fakeSource) Kind() string { return "fake" }

func (s *fakeSource) Backfill(context.Context) ([]message.Message, error) {
	return s.backfill, s.err
}

func (s *fakeSource) Watch(context.Context) (<-chan source.Event, error) {
	return s.events, nil
}

func (s *fakeSource) Close() error { return nil }

func chatMessages(from, n int) []message.Message {
	out := make([]message.Message, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, message.Structured{
			ID:     fmt.Sprintf("m%d", i),
			UserID: "u1",
			Login:  "amy",
			Text:   fmt.Sprintf("hello %d", i),
		})
	}
	return out
}

type harness struct {
	p     *Plugin
	sched *schedule.Manual
	src   *fakeSource
	ctx   *plugin.Context
}

func newHarness(t *testing.T, backfill []message.Message) *harness {
	t.Helper()
	require.NoError(t, state.InitWithDir(filepath.Join(t.TempDir(), "state")))

	store, err := cosmetics.New(nil, 16)
	require.NoError(t, err)

	src := &fakeSource{backfill: backfill, events: make(chan source.Event, 8)}
	cfg := config.Default()
	cfg.Source.Channel = "demo"
	ctx := &plugin.Context{Config: cfg, Source: src, Cosmetics: store}

	m := schedule.NewManual()
	p := New(WithScheduler(manualSched{m}))
	require.NoError(t, p.Init(ctx))
	t.Cleanup(p.Stop)

	h := &harness{p: p, sched: m, src: src, ctx: ctx}
	h.update(plugin.ResizeMsg{Width: 60, Height: 10})
	return h
}

// start runs the backfill command and lets the bulk load settle.
func (h *harness) start(t *testing.T) {
	t.Helper()
	cmd := h.p.Start()
	require.NotNil(t, cmd)
	h.update(cmd())
	h.advance(5 * time.Second)
}

func (h *harness) update(m tea.Msg) tea.Cmd {
	_, cmd := h.p.Update(m)
	return cmd
}

func (h *harness) advance(d time.Duration) {
	h.sched.Advance(d)
	h.update(nil)
}

func (h *harness) key(k string) tea.Cmd {
	var km tea.KeyMsg
	switch k {
	case "enter":
		km = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		km = tea.KeyMsg{Type: tea.KeyEsc}
	case "pgup":
		km = tea.KeyMsg{Type: tea.KeyPgUp}
	default:
		km = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	return h.update(km)
}

// toast runs cmd and returns the toast it produced, if any.
func toast(cmd tea.Cmd) (msg.ToastMsg, bool) {
	if cmd == nil {
		return msg.ToastMsg{}, false
	}
	return findToast(cmd())
}

func findToast(m tea.Msg) (msg.ToastMsg, bool) {
	switch m := m.(type) {
	case msg.ToastMsg:
		return m, true
	case tea.BatchMsg:
		for _, c := range m {
			if c == nil {
				continue
			}
			if t, ok := findToast(c()); ok {
				return t, true
			}
		}
	}
	return msg.ToastMsg{}, false
}

func TestInit_RequiresSource(t *testing.T) {
	p := New()
	assert.Error(t, p.Init(&plugin.Context{Config: config.Default()}))
}

func TestBackfill_BulkLoadFollowsBottom(t *testing.T) {
	h := newHarness(t, chatMessages(0, 30))
	cmd := h.p.Start()
	h.update(cmd())

	st := h.p.Controller().State()
	assert.True(t, st.InitialLoad, "a backfill is a bulk load")
	assert.Equal(t, 30, h.p.Controller().Len())

	h.advance(5 * time.Second)
	st = h.p.Controller().State()
	assert.False(t, st.InitialLoad)
	assert.True(t, st.AutoFollowing)

	view := h.p.View(60, 10)
	assert.Contains(t, view, "hello 29")
	assert.NotContains(t, view, "hello 0")
	assert.Len(t, strings.Split(view, "\n"), 10)
}

func TestBackfill_ErrorShowsToast(t *testing.T) {
	h := newHarness(t, nil)
	h.src.err = errors.New("no such file")
	cmd := h.update(h.p.Start()())

	tm, ok := toast(cmd)
	require.True(t, ok)
	assert.True(t, tm.IsError)
	assert.Contains(t, tm.Message, "no such file")
}

func TestEvents_AppendAndModerate(t *testing.T) {
	h := newHarness(t, chatMessages(0, 10))
	h.start(t)

	h.update(EventsMsg{Events: []source.Event{{Type: source.EventMessages, Messages: chatMessages(10, 2)}}})
	assert.Equal(t, 12, h.p.Controller().Len())
	assert.Contains(t, h.p.View(60, 10), "hello 11")

	h.update(EventsMsg{Events: []source.Event{{Type: source.EventDeleted, ID: "m11"}}})
	view := h.p.View(60, 10)
	assert.NotContains(t, view, "hello 11")
	assert.Contains(t, view, "<message deleted>")

	h.update(EventsMsg{Events: []source.Event{{Type: source.EventClearUser, UserID: "u1"}}})
	assert.NotContains(t, h.p.View(60, 10), "hello 10")
}

func TestPause_ShowsUnseenBanner(t *testing.T) {
	h := newHarness(t, chatMessages(0, 30))
	h.start(t)

	h.key("pgup")
	require.True(t, h.p.Controller().State().Paused)
	assert.Contains(t, h.p.View(60, 10), "Paused")

	h.update(EventsMsg{Events: []source.Event{{Type: source.EventMessages, Messages: chatMessages(30, 3)}}})
	assert.Equal(t, 3, h.p.Controller().Unseen())
	assert.Contains(t, h.p.View(60, 10), "3 new messages")

	h.key("G")
	assert.False(t, h.p.Controller().State().Paused)
	assert.Contains(t, h.p.View(60, 10), "hello 32")
}

func TestJump_MissingTargetKeepsState(t *testing.T) {
	h := newHarness(t, chatMessages(0, 30))
	h.start(t)

	h.key("/")
	require.True(t, h.p.ConsumesTextInput())
	assert.Equal(t, contextJump, h.p.FocusContext())
	for _, r := range "gone" {
		h.key(string(r))
	}
	cmd := h.key("enter")

	tm, ok := toast(cmd)
	require.True(t, ok)
	assert.Equal(t, MissingTargetText, tm.Message)
	assert.False(t, h.p.Controller().State().Paused)
	assert.False(t, h.p.ConsumesTextInput())
}

func TestJump_ByID(t *testing.T) {
	h := newHarness(t, chatMessages(0, 30))
	h.start(t)

	h.key("/")
	for _, r := range "m3" {
		h.key(string(r))
	}
	h.key("enter")

	st := h.p.Controller().State()
	assert.True(t, st.Paused, "a jump pauses the list")
	assert.Equal(t, "m3", h.p.Controller().Highlighted())
	assert.Contains(t, h.p.View(60, 10), "hello 3")
}

func TestJump_ToParent(t *testing.T) {
	ms := chatMessages(0, 20)
	ms = append(ms, message.Structured{
		ID: "r1", Login: "bo", Text: "agreed",
		Reply: &message.Reply{ParentID: "m2", ParentLogin: "amy", ParentText: "hello 2"},
	})
	h := newHarness(t, ms)
	h.start(t)

	h.key("enter")
	assert.Equal(t, "m2", h.p.Controller().Highlighted())
	assert.Equal(t, "m2", h.p.selected)
}

func TestPromptEscCancels(t *testing.T) {
	h := newHarness(t, chatMessages(0, 5))
	h.start(t)

	h.key("/")
	require.True(t, h.p.ConsumesTextInput())
	assert.Contains(t, h.p.View(60, 10), "Jump to message")
	h.key("esc")
	assert.False(t, h.p.ConsumesTextInput())
}

func TestSelectAndCopy(t *testing.T) {
	h := newHarness(t, chatMessages(0, 5))
	h.start(t)

	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	defer func() { writeClipboard = orig }()

	tm, ok := toast(h.key("y"))
	require.True(t, ok)
	assert.Equal(t, "nothing selected", tm.Message)

	h.key("[")
	assert.Equal(t, "m4", h.p.selected, "first select picks the newest visible row")
	h.key("[")
	assert.Equal(t, "m3", h.p.selected)
	assert.Contains(t, h.p.View(60, 10), "id m3")

	h.key("y")
	assert.Equal(t, "amy: hello 3", copied)

	h.key("esc")
	assert.Empty(t, h.p.selected)
}

func TestToggleTimestampsPersists(t *testing.T) {
	h := newHarness(t, chatMessages(0, 5))
	h.start(t)

	gen := h.p.Controller().Generation()
	h.key("t")
	assert.True(t, h.p.layout.Timestamps())
	assert.True(t, state.GetShowTimestamps(false))
	assert.Greater(t, h.p.Controller().Generation(), gen, "gutter change starts a new render generation")

	h.key("t")
	assert.False(t, state.GetShowTimestamps(true))
}

func TestChannelSwitch(t *testing.T) {
	h := newHarness(t, chatMessages(0, 10))
	h.start(t)
	h.ctx.Cosmetics.Badge("moderator")
	require.NotZero(t, h.ctx.Cosmetics.Len())
	epoch := h.ctx.Epoch

	cmd := h.update(EventsMsg{Events: []source.Event{{Type: source.EventChannel, Channel: "xqc"}}})

	assert.Equal(t, "xqc", h.p.Channel())
	assert.Equal(t, "xqc", h.ctx.Cosmetics.Channel())
	assert.Zero(t, h.ctx.Cosmetics.Len())
	assert.Equal(t, epoch+1, h.ctx.Epoch)
	assert.Equal(t, "xqc", state.GetLastChannel())
	assert.Equal(t, 1, h.p.Controller().Len(), "only the switch notice remains")
	assert.Contains(t, h.p.View(60, 10), "now viewing xqc")

	require.NotNil(t, cmd)
	close(h.src.events) // so the re-armed listener returns
	var found bool
	if batch, ok := cmd().(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			if cm, ok := c().(msg.ChannelMsg); ok && cm.Channel == "xqc" {
				found = true
			}
		}
	}
	assert.True(t, found, "app is told about the switch")

	// A backfill started before the switch is dropped.
	h.update(LoadedMsg{Epoch: epoch, Messages: chatMessages(100, 10)})
	assert.Equal(t, 1, h.p.Controller().Len())
}

func TestListenMergesQueuedEvents(t *testing.T) {
	ch := make(chan source.Event, 4)
	ch <- source.Event{Type: source.EventMessages, Messages: chatMessages(0, 1)}
	ch <- source.Event{Type: source.EventMessages, Messages: chatMessages(1, 1)}
	ch <- source.Event{Type: source.EventDeleted, ID: "m0"}
	close(ch)

	got := listen(ch)().(EventsMsg)
	assert.True(t, got.Closed)
	require.Len(t, got.Events, 2)
	assert.Len(t, got.Events[0].Messages, 2)
	assert.Equal(t, source.EventDeleted, got.Events[1].Type)
}

func TestMouseWheelPauses(t *testing.T) {
	h := newHarness(t, chatMessages(0, 30))
	h.start(t)

	for range 3 {
		h.update(tea.MouseMsg{Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	}
	require.True(t, h.p.Controller().State().Paused)

	h.update(tea.MouseMsg{Button: tea.MouseButtonLeft, Action: tea.MouseActionPress, Y: 9})
	assert.False(t, h.p.Controller().State().Paused, "clicking the banner resumes")
}
