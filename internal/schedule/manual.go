package schedule

import (
	"sort"
	"time"
)

// Manual is a deterministic Scheduler driven by Advance. Tests use it in place
// of real timers.
type Manual struct {
	// FrameInterval is how far Frame advances and how long NextFrame waits.
	FrameInterval time.Duration

	now    time.Duration
	seq    uint64
	tasks  []*manualTask
	closed bool
}

type manualTask struct {
	at        time.Duration
	seq       uint64
	fn        func()
	cancelled bool
}

// NewManual creates a Manual scheduler at time zero.
func NewManual() *Manual {
	return &Manual{FrameInterval: DefaultFrameInterval}
}

// Now returns the elapsed virtual time.
func (m *Manual) Now() time.Duration { return m.now }

// After implements Scheduler.
func (m *Manual) After(d time.Duration, fn func()) Cancel {
	if m.closed || fn == nil {
		return func() {}
	}
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTask{at: m.now + d, seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)
	return func() { t.cancelled = true }
}

// NextFrame implements Scheduler.
func (m *Manual) NextFrame(fn func()) Cancel {
	return m.After(m.FrameInterval, fn)
}

// Frame advances by one frame interval.
func (m *Manual) Frame() { m.Advance(m.FrameInterval) }

// Advance moves virtual time forward by d, running due callbacks in order.
// Callbacks scheduled while advancing run too if they fall inside the window.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		if t.at > m.now {
			m.now = t.at
		}
		t.fn()
	}
	m.now = target
}

func (m *Manual) nextDue(target time.Duration) *manualTask {
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	m.tasks = live
	sort.SliceStable(m.tasks, func(i, j int) bool {
		if m.tasks[i].at != m.tasks[j].at {
			return m.tasks[i].at < m.tasks[j].at
		}
		return m.tasks[i].seq < m.tasks[j].seq
	})
	if len(m.tasks) == 0 || m.tasks[0].at > target {
		return nil
	}
	t := m.tasks[0]
	m.tasks = m.tasks[1:]
	return t
}

// Pending returns the number of callbacks not yet run or cancelled.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Close drops all pending callbacks; later requests are ignored.
func (m *Manual) Close() {
	m.closed = true
	m.tasks = nil
}
