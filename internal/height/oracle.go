// Package height owns the authoritative row heights of the message list. It
// merges precomputed layout heights (trusted immediately) with measured
// heights reported by rendered rows, and falls back to a heuristic estimate
// for legacy rows nobody has measured yet.
package height

import (
	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/schedule"
	"github.com/marcus/chatview/internal/virtual"
)

const (
	// DefaultTolerance absorbs sub-pixel rounding between measurements.
	DefaultTolerance = 2
	// DefaultSlack is how far the identity map may exceed the buffer size
	// before pruning.
	DefaultSlack = 50
)

// ReportResult classifies a measurement report.
type ReportResult string

const (
	ReportApplied       ReportResult = "applied"
	ReportWithinTol     ReportResult = "within_tolerance"
	ReportAuthoritative ReportResult = "authoritative"
	ReportStale         ReportResult = "stale"
	ReportInvalid       ReportResult = "invalid"
)

// Recorder observes oracle activity. metrics.Engine implements it.
type Recorder interface {
	MeasurementReport(result string)
}

type nopRecorder struct{}

func (nopRecorder) MeasurementReport(string) {}

// Config tunes the oracle.
type Config struct {
	Tolerance  int
	BufferSize int
	Slack      int
}

type record struct {
	height int
	// authoritative records come from a precomputed layout height.
	authoritative bool
}

// Oracle maps message identity to row height. The index-keyed cache it
// serves the list from is derived and rebuilt on every Reconcile.
type Oracle struct {
	cfg      Config
	est      *Estimator
	resets   *ResetCoalescer
	recorder Recorder

	entries []message.Entry
	indexOf map[string]int
	records map[string]record
	cache   map[int]int
}

// New creates an Oracle. Invalidations are coalesced per frame on sched and
// issued to driver.
func New(cfg Config, est *Estimator, sched schedule.Scheduler, driver virtual.Driver) *Oracle {
	if cfg.Tolerance < 0 {
		cfg.Tolerance = 0
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = message.DefaultBufferSize
	}
	if cfg.Slack < 0 {
		cfg.Slack = DefaultSlack
	}
	return &Oracle{
		cfg:      cfg,
		est:      est,
		resets:   NewResetCoalescer(sched, driver),
		recorder: nopRecorder{},
		indexOf:  make(map[string]int),
		records:  make(map[string]record),
		cache:    make(map[int]int),
	}
}

// SetRecorder installs an activity recorder.
func (o *Oracle) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	o.recorder = r
}

// Estimator returns the heuristic estimator.
func (o *Oracle) Estimator() *Estimator { return o.est }

// Resets returns the per-frame reset coalescer.
func (o *Oracle) Resets() *ResetCoalescer { return o.resets }

// Len returns the number of reconciled entries.
func (o *Oracle) Len() int { return len(o.entries) }

// Entry returns the entry at index.
func (o *Oracle) Entry(index int) (message.Entry, bool) {
	if index < 0 || index >= len(o.entries) {
		return message.Entry{}, false
	}
	return o.entries[index], true
}

// IndexOf resolves an identity to its current index.
func (o *Oracle) IndexOf(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	i, ok := o.indexOf[id]
	return i, ok
}

// Height returns the height for index, caching it when it is known rather
// than estimated.
func (o *Oracle) Height(index int) int {
	e, ok := o.Entry(index)
	if !ok {
		return o.est.LineHeight()
	}
	if h, ok := o.known(index, e); ok {
		return h
	}
	// Estimates are never cached so the first real measurement always lands.
	return o.est.Estimate(e)
}

// Cached returns a measured or precomputed height for index without
// estimating.
func (o *Oracle) Cached(index int) (int, bool) {
	e, ok := o.Entry(index)
	if !ok {
		return 0, false
	}
	return o.known(index, e)
}

func (o *Oracle) known(index int, e message.Entry) (int, bool) {
	if e.ID != "" {
		if r, ok := o.records[e.ID]; ok {
			o.cache[index] = r.height
			return r.height, true
		}
	}
	if e.Structured && e.PrecomputedHeight > 0 {
		o.cache[index] = e.PrecomputedHeight
		if e.ID != "" {
			o.records[e.ID] = record{height: e.PrecomputedHeight, authoritative: true}
		}
		return e.PrecomputedHeight, true
	}
	if h, ok := o.cache[index]; ok {
		return h, true
	}
	return 0, false
}

// ReportMeasured records the rendered height of the row at index.
func (o *Oracle) ReportMeasured(index, px int, identity string) ReportResult {
	res := o.report(index, px, identity)
	o.recorder.MeasurementReport(string(res))
	return res
}

func (o *Oracle) report(index, px int, identity string) ReportResult {
	if px <= 0 {
		return ReportInvalid
	}
	e, ok := o.Entry(index)
	if !ok {
		return ReportStale
	}
	if identity != "" && e.ID != identity {
		// The list moved under the report; follow the identity instead.
		if i, ok := o.indexOf[identity]; ok && i != index {
			return o.report(i, px, identity)
		}
		return ReportStale
	}
	if o.isAuthoritative(e) {
		return ReportAuthoritative
	}
	if cached, ok := o.cache[index]; ok && abs(px-cached) <= o.cfg.Tolerance {
		return ReportWithinTol
	}

	o.cache[index] = px
	if e.ID != "" {
		o.records[e.ID] = record{height: px}
	}
	o.resets.Mark(index)
	return ReportApplied
}

func (o *Oracle) isAuthoritative(e message.Entry) bool {
	if e.Structured && e.PrecomputedHeight > 0 {
		return true
	}
	if e.ID == "" {
		return false
	}
	r, ok := o.records[e.ID]
	return ok && r.authoritative
}

// Reconcile adopts a new message list. The index cache is rebuilt from the
// identity records because indices shift as the list changes; records for
// messages that left the list are pruned once the map outgrows the buffer.
func (o *Oracle) Reconcile(entries []message.Entry) {
	o.entries = entries
	o.indexOf = make(map[string]int, len(entries))
	o.cache = make(map[int]int, len(entries))

	for i, e := range entries {
		if e.ID == "" {
			continue
		}
		o.indexOf[e.ID] = i
		if e.Structured && e.PrecomputedHeight > 0 {
			o.records[e.ID] = record{height: e.PrecomputedHeight, authoritative: true}
		}
		if r, ok := o.records[e.ID]; ok {
			o.cache[i] = r.height
		}
	}

	if len(o.records) > o.cfg.BufferSize+o.cfg.Slack {
		for id := range o.records {
			if _, ok := o.indexOf[id]; !ok {
				delete(o.records, id)
			}
		}
	}
}

// Records returns the number of identity-keyed records.
func (o *Oracle) Records() int { return len(o.records) }

// Snapshot copies the index-keyed heights known right now.
func (o *Oracle) Snapshot() map[int]int {
	out := make(map[int]int, len(o.cache))
	for i, h := range o.cache {
		out[i] = h
	}
	return out
}

// Clear drops every cached height, e.g. after a bulk load or a width change.
func (o *Oracle) Clear() {
	o.records = make(map[string]record)
	o.cache = make(map[int]int)
}

// Close cancels any pending coalesced reset.
func (o *Oracle) Close() {
	o.resets.Stop()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
