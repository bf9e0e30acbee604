package height

import (
	"github.com/marcus/chatview/internal/schedule"
	"github.com/marcus/chatview/internal/virtual"
)

// ResetCoalescer batches invalidation requests into at most one
// InvalidateFrom per frame, carrying the smallest index marked since the
// last flush.
type ResetCoalescer struct {
	sched  schedule.Scheduler
	driver virtual.Driver

	pending    bool
	pendingMin int
	cancel     schedule.Cancel

	// OnFlush runs after each flush with the index that was invalidated.
	OnFlush func(index int)

	// Flushes counts InvalidateFrom calls issued.
	Flushes int
}

// NewResetCoalescer creates a coalescer issuing resets to driver.
func NewResetCoalescer(sched schedule.Scheduler, driver virtual.Driver) *ResetCoalescer {
	return &ResetCoalescer{sched: sched, driver: driver}
}

// Mark queues index for invalidation on the next frame.
func (c *ResetCoalescer) Mark(index int) {
	if index < 0 {
		index = 0
	}
	if c.pending {
		if index < c.pendingMin {
			c.pendingMin = index
		}
		return
	}
	c.pending = true
	c.pendingMin = index
	c.cancel = c.sched.NextFrame(c.flush)
}

// Pending reports whether a flush is scheduled, and from which index.
func (c *ResetCoalescer) Pending() (int, bool) {
	return c.pendingMin, c.pending
}

func (c *ResetCoalescer) flush() {
	if !c.pending {
		return
	}
	index := c.pendingMin
	c.pending = false
	c.cancel = nil
	c.Flushes++
	if c.driver != nil {
		c.driver.InvalidateFrom(index)
	}
	if c.OnFlush != nil {
		c.OnFlush(index)
	}
}

// Stop cancels any pending flush.
func (c *ResetCoalescer) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.pending = false
}
