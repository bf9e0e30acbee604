// Package schedule abstracts the two deferral points of the list engine:
// waiting for the next paint and waiting out a fixed delay. Everything runs on
// one event loop; a Scheduler never invokes callbacks concurrently.
package schedule

import "time"

// DefaultFrameInterval approximates one paint at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Cancel withdraws a scheduled callback. Calling it after the callback ran,
// or more than once, is a no-op.
type Cancel func()

// Scheduler defers callbacks onto the owning event loop.
type Scheduler interface {
	// After runs fn once d has elapsed.
	After(d time.Duration, fn func()) Cancel
	// NextFrame runs fn after the next paint.
	NextFrame(fn func()) Cancel
}

// Group tracks cancels so a component can drop all of its pending callbacks
// at once, e.g. when a sequence restarts or the view unmounts.
type Group struct {
	cancels []Cancel
}

// Add records c.
func (g *Group) Add(c Cancel) {
	if c != nil {
		g.cancels = append(g.cancels, c)
	}
}

// CancelAll cancels every recorded callback and forgets them.
func (g *Group) CancelAll() {
	for _, c := range g.cancels {
		c()
	}
	g.cancels = nil
}

// Len returns the number of recorded cancels.
func (g *Group) Len() int { return len(g.cancels) }
