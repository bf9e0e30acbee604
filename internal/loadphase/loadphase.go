// Package loadphase tells a historical backfill apart from steady-state
// appends and runs the settle passes that follow a backfill.
package loadphase

import (
	"time"

	"github.com/marcus/chatview/internal/schedule"
)

// DefaultBulkThreshold is the batch size above which an update into an empty
// list counts as a backfill.
const DefaultBulkThreshold = 5

// Phase is the kind of list update.
type Phase int

const (
	None Phase = iota
	Incremental
	Bulk
)

func (p Phase) String() string {
	switch p {
	case Incremental:
		return "incremental"
	case Bulk:
		return "bulk"
	default:
		return "none"
	}
}

// Classifier classifies list updates by count.
type Classifier struct {
	BulkThreshold int
}

// NewClassifier returns a Classifier with the given threshold, or the
// default when threshold is not positive.
func NewClassifier(threshold int) Classifier {
	if threshold <= 0 {
		threshold = DefaultBulkThreshold
	}
	return Classifier{BulkThreshold: threshold}
}

// Classify returns Bulk when an empty list receives more than BulkThreshold
// messages at once, Incremental for any other growth and None otherwise.
func (c Classifier) Classify(prev, next int) Phase {
	switch {
	case next <= prev:
		return None
	case prev == 0 && next > c.BulkThreshold:
		return Bulk
	default:
		return Incremental
	}
}

// Default settle timings.
var (
	DefaultSettlePasses     = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 1000 * time.Millisecond}
	DefaultInitialLoadGrace = 3000 * time.Millisecond
)

// SettleConfig holds the settle timings, measured from the start of a run.
type SettleConfig struct {
	Passes []time.Duration
	Grace  time.Duration
}

// DefaultSettleConfig returns the default timings.
func DefaultSettleConfig() SettleConfig {
	return SettleConfig{
		Passes: append([]time.Duration(nil), DefaultSettlePasses...),
		Grace:  DefaultInitialLoadGrace,
	}
}

// Plan is what a settle run does. Pass runs after the next frame and again
// at each configured delay; Done runs once at the grace deadline.
type Plan struct {
	Pass func()
	Done func()
}

// Settler runs settle sequences. Starting a run cancels the previous one.
type Settler struct {
	sched schedule.Scheduler
	cfg   SettleConfig
	group schedule.Group

	running bool
	// Passes counts Pass invocations across runs.
	Passes int
}

// NewSettler creates a Settler on sched.
func NewSettler(sched schedule.Scheduler, cfg SettleConfig) *Settler {
	return &Settler{sched: sched, cfg: cfg}
}

// Run starts plan.
func (s *Settler) Run(plan Plan) {
	s.Stop()
	s.running = true

	pass := func() {
		s.Passes++
		if plan.Pass != nil {
			plan.Pass()
		}
	}
	s.group.Add(s.sched.NextFrame(pass))
	for _, d := range s.cfg.Passes {
		s.group.Add(s.sched.After(d, pass))
	}

	last := s.cfg.Grace
	for _, d := range s.cfg.Passes {
		last = max(last, d)
	}
	s.group.Add(s.sched.After(last, func() {
		s.running = false
		if plan.Done != nil {
			plan.Done()
		}
	}))
}

// Running reports whether a run has not reached its deadline.
func (s *Settler) Running() bool { return s.running }

// Stop cancels the current run without calling Done.
func (s *Settler) Stop() {
	s.group.CancelAll()
	s.running = false
}
