// Package scroll decides whether the message list follows new content or is
// paused under the user. It is a pure state machine fed with scroll events.
package scroll

import "github.com/marcus/chatview/internal/virtual"

const (
	// DefaultNearBottom is the distance within which the list auto-follows.
	DefaultNearBottom = 50
	// DefaultScrolledAway is the distance a user scroll must exceed to pause.
	DefaultScrolledAway = 100
)

// Transition is the pause-state change caused by a scroll event.
type Transition int

const (
	None Transition = iota
	Paused
	Resumed
)

func (t Transition) String() string {
	switch t {
	case Paused:
		return "paused"
	case Resumed:
		return "resumed"
	default:
		return "none"
	}
}

// Config holds the two thresholds. Keeping ScrolledAway above NearBottom
// stops small layout shifts from flapping between paused and following.
type Config struct {
	NearBottom   int
	ScrolledAway int
}

// DefaultConfig returns the pixel defaults.
func DefaultConfig() Config {
	return Config{NearBottom: DefaultNearBottom, ScrolledAway: DefaultScrolledAway}
}

// Controller tracks the paused and auto-following flags.
type Controller struct {
	cfg Config

	paused    bool
	following bool

	lastOffset int
	hasLast    bool

	resumeGrace bool
	initialLoad bool
}

// New creates a Controller that starts following.
func New(cfg Config) *Controller {
	if cfg.NearBottom < 0 {
		cfg.NearBottom = 0
	}
	if cfg.ScrolledAway < cfg.NearBottom {
		cfg.ScrolledAway = cfg.NearBottom
	}
	return &Controller{cfg: cfg, following: true}
}

// Config returns the thresholds in use.
func (c *Controller) Config() Config { return c.cfg }

// State returns the paused and auto-following flags.
func (c *Controller) State() (paused, following bool) {
	return c.paused, c.following
}

// Paused reports whether the list is paused.
func (c *Controller) Paused() bool { return c.paused }

// Following reports whether new messages should scroll to the end.
func (c *Controller) Following() bool { return c.following }

// SetResumeGrace toggles the window after an explicit resume in which the
// resume's own scroll must not re-trigger a pause.
func (c *Controller) SetResumeGrace(on bool) { c.resumeGrace = on }

// SetInitialLoad toggles the window after a bulk load in which settling
// layout must not look like the user scrolling away.
func (c *Controller) SetInitialLoad(on bool) { c.initialLoad = on }

// InGrace reports whether scroll events are currently ignored.
func (c *Controller) InGrace() bool { return c.resumeGrace || c.initialLoad }

// OnScroll applies a scroll event and returns the resulting transition.
func (c *Controller) OnScroll(e virtual.ScrollEvent) Transition {
	prev, hadPrev := c.lastOffset, c.hasLast
	c.lastOffset, c.hasLast = e.Offset, true

	if c.InGrace() {
		return None
	}

	distance := e.DistanceToBottom()
	// A paused list only starts following again through Resumed.
	if !c.paused {
		c.following = distance <= c.cfg.NearBottom
	}

	if e.Programmatic {
		return None
	}

	if c.paused {
		if distance <= c.cfg.NearBottom {
			c.paused = false
			c.following = true
			return Resumed
		}
		return None
	}

	scrollingUp := hadPrev && e.Offset < prev
	if distance > c.cfg.ScrolledAway && scrollingUp {
		c.paused = true
		c.following = false
		return Paused
	}
	return None
}

// ForcePause pauses regardless of scroll position. It reports whether the
// state changed.
func (c *Controller) ForcePause() bool {
	changed := !c.paused
	c.paused = true
	c.following = false
	return changed
}

// Resume clears the pause and re-enables auto-follow. It reports whether the
// list was paused.
func (c *Controller) Resume() bool {
	changed := c.paused
	c.paused = false
	c.following = true
	return changed
}

// Reset returns to the initial following state, e.g. on channel switch.
func (c *Controller) Reset() {
	*c = Controller{cfg: c.cfg, following: true}
}
