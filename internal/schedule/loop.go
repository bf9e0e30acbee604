package schedule

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// FireMsg is delivered to the bubbletea program when a Loop timer elapses.
// It must be routed back to Loop.Handle.
type FireMsg struct {
	ID  uint64
	Gen uint64
}

// Loop is a Scheduler backed by tea.Tick. Requests queue commands in an
// outbox that the owning model returns from Update via Cmd.
//
// Every tick carries the generation it was scheduled in; Close bumps the
// generation so ticks that fire after teardown are ignored.
type Loop struct {
	frame  time.Duration
	gen    uint64
	nextID uint64
	tasks  map[uint64]func()
	outbox []tea.Cmd
}

// NewLoop creates a Loop. frame is the delay used for NextFrame.
func NewLoop(frame time.Duration) *Loop {
	if frame <= 0 {
		frame = DefaultFrameInterval
	}
	return &Loop{frame: frame, tasks: make(map[uint64]func())}
}

// After implements Scheduler.
func (l *Loop) After(d time.Duration, fn func()) Cancel {
	if fn == nil {
		return func() {}
	}
	l.nextID++
	id, gen := l.nextID, l.gen
	l.tasks[id] = fn
	l.outbox = append(l.outbox, tea.Tick(d, func(time.Time) tea.Msg {
		return FireMsg{ID: id, Gen: gen}
	}))
	return func() { delete(l.tasks, id) }
}

// NextFrame implements Scheduler.
func (l *Loop) NextFrame(fn func()) Cancel {
	return l.After(l.frame, fn)
}

// Handle runs the callback for msg if it is still live. It reports whether
// a callback ran.
func (l *Loop) Handle(msg FireMsg) bool {
	if msg.Gen != l.gen {
		return false
	}
	fn, ok := l.tasks[msg.ID]
	if !ok {
		return false
	}
	delete(l.tasks, msg.ID)
	fn()
	return true
}

// Cmd drains the outbox into a single command, or nil when empty.
func (l *Loop) Cmd() tea.Cmd {
	if len(l.outbox) == 0 {
		return nil
	}
	cmds := l.outbox
	l.outbox = nil
	if len(cmds) == 1 {
		return cmds[0]
	}
	return tea.Batch(cmds...)
}

// Pending returns the number of live callbacks.
func (l *Loop) Pending() int { return len(l.tasks) }

// Close invalidates all pending callbacks.
func (l *Loop) Close() {
	l.gen++
	l.tasks = make(map[uint64]func())
	l.outbox = nil
}
