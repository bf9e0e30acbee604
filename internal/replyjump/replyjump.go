// Package replyjump moves the viewport onto an earlier message and keeps
// correcting the position while row heights around it settle.
//
// A jump is a small state machine:
//
//	Resolve -> Pause -> Reset -> Scroll -> Highlight -> Correct1 -> Correct2 -> Correct3 -> Sweep -> Done
//
// The first five phases run synchronously inside JumpTo. The corrections run
// on the scheduler, each one re-resolving the target because the list may
// have changed underneath it. Resolve fails fast with NotFound.
package replyjump

import (
	"time"

	"github.com/marcus/chatview/internal/schedule"
	"github.com/marcus/chatview/internal/virtual"
)

// Phase names a step of a jump.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseResolve   Phase = "resolve"
	PhasePause     Phase = "pause"
	PhaseReset     Phase = "reset"
	PhaseScroll    Phase = "scroll"
	PhaseHighlight Phase = "highlight"
	PhaseCorrect1  Phase = "correct-1"
	PhaseCorrect2  Phase = "correct-2"
	PhaseCorrect3  Phase = "correct-3"
	PhaseSweep     Phase = "sweep"
	PhaseDone      Phase = "done"
	PhaseNotFound  Phase = "not-found"
	PhaseLost      Phase = "lost"
)

// Host is the list the coordinator steers.
type Host interface {
	// IndexOf resolves a message identity to its current index.
	IndexOf(id string) (int, bool)
	// ForcePause pauses the list regardless of scroll position.
	ForcePause()
	// Highlight marks id; ClearHighlight removes the mark if id still holds it.
	Highlight(id string)
	ClearHighlight(id string)
	// Sweep remeasures the whole list.
	Sweep()
}

// Recorder observes jump outcomes.
type Recorder interface {
	Jump(result string)
}

// Config holds the jump timings, measured from the start of the jump.
// Correct1 always runs after the next frame.
type Config struct {
	HighlightFor  time.Duration
	Correct2After time.Duration
	Correct3After time.Duration
	SweepAfter    time.Duration
	// Margin is how many rows above the target each correction remeasures.
	Margin int
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{
		HighlightFor:  2 * time.Second,
		Correct2After: 150 * time.Millisecond,
		Correct3After: 500 * time.Millisecond,
		SweepAfter:    1000 * time.Millisecond,
		Margin:        3,
	}
}

// Coordinator runs one jump at a time.
type Coordinator struct {
	cfg      Config
	sched    schedule.Scheduler
	driver   virtual.Driver
	host     Host
	recorder Recorder

	steps      schedule.Group
	highlights schedule.Group

	phase  Phase
	target string

	// OnPhase, when set, observes every phase change.
	OnPhase func(Phase)
}

// New creates a Coordinator.
func New(cfg Config, sched schedule.Scheduler, driver virtual.Driver, host Host) *Coordinator {
	if cfg.Margin < 0 {
		cfg.Margin = 0
	}
	return &Coordinator{cfg: cfg, sched: sched, driver: driver, host: host, phase: PhaseIdle}
}

// SetRecorder installs an outcome recorder.
func (c *Coordinator) SetRecorder(r Recorder) { c.recorder = r }

// Phase returns the phase of the current or last jump.
func (c *Coordinator) Phase() Phase { return c.phase }

// Target returns the identity of the current or last jump.
func (c *Coordinator) Target() string { return c.target }

// Active reports whether correction steps are still pending.
func (c *Coordinator) Active() bool { return c.steps.Len() > 0 && !c.terminal() }

func (c *Coordinator) terminal() bool {
	switch c.phase {
	case PhaseIdle, PhaseDone, PhaseNotFound, PhaseLost:
		return true
	}
	return false
}

func (c *Coordinator) enter(p Phase) {
	c.phase = p
	if c.OnPhase != nil {
		c.OnPhase(p)
	}
}

func (c *Coordinator) record(result string) {
	if c.recorder != nil {
		c.recorder.Jump(result)
	}
}

// JumpTo navigates to the message with identity id. It returns false without
// touching any state when the message is not in the list.
func (c *Coordinator) JumpTo(id string) bool {
	if id == "" {
		c.record(string(PhaseNotFound))
		return false
	}
	index, ok := c.host.IndexOf(id)
	if !ok {
		c.record(string(PhaseNotFound))
		return false
	}

	c.steps.CancelAll()
	c.target = id
	c.enter(PhaseResolve)

	c.enter(PhasePause)
	c.host.ForcePause()

	c.enter(PhaseReset)
	c.driver.InvalidateFrom(0)

	c.enter(PhaseScroll)
	c.driver.ScrollTo(index, virtual.AlignCenter)

	c.enter(PhaseHighlight)
	c.host.Highlight(id)
	c.highlights.Add(c.sched.After(c.cfg.HighlightFor, func() {
		c.host.ClearHighlight(id)
	}))

	c.steps.Add(c.sched.NextFrame(func() { c.correct(id, PhaseCorrect1, true) }))
	c.steps.Add(c.sched.After(c.cfg.Correct2After, func() { c.correct(id, PhaseCorrect2, true) }))
	c.steps.Add(c.sched.After(c.cfg.Correct3After, func() { c.correct(id, PhaseCorrect3, false) }))
	c.steps.Add(c.sched.After(c.cfg.SweepAfter, func() { c.sweep(id) }))

	c.record("ok")
	return true
}

func (c *Coordinator) correct(id string, p Phase, reset bool) {
	if c.target != id || c.terminal() {
		return
	}
	index, ok := c.host.IndexOf(id)
	if !ok {
		c.lose()
		return
	}
	c.enter(p)
	if reset {
		c.driver.InvalidateFrom(max(0, index-c.cfg.Margin))
	}
	c.driver.ScrollTo(index, virtual.AlignCenter)
}

func (c *Coordinator) sweep(id string) {
	if c.target != id || c.terminal() {
		return
	}
	c.enter(PhaseSweep)
	c.host.Sweep()
	c.steps.CancelAll()
	c.enter(PhaseDone)
}

// lose ends a jump whose target left the list mid-sequence.
func (c *Coordinator) lose() {
	c.steps.CancelAll()
	c.enter(PhaseLost)
	c.record(string(PhaseLost))
}

// Cancel drops pending correction steps. Highlights still expire.
func (c *Coordinator) Cancel() {
	c.steps.CancelAll()
	if !c.terminal() {
		c.enter(PhaseDone)
	}
}

// Close drops every pending callback, highlights included.
func (c *Coordinator) Close() {
	c.steps.CancelAll()
	c.highlights.CancelAll()
}
