// Package chatlist wires the list engine together: it owns the message list,
// feeds the height oracle, arbitrates scrolling and pausing, and answers the
// virtual list's size queries.
package chatlist

import (
	"encoding/binary"
	"maps"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/marcus/chatview/internal/freeze"
	"github.com/marcus/chatview/internal/height"
	"github.com/marcus/chatview/internal/loadphase"
	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/replyjump"
	"github.com/marcus/chatview/internal/schedule"
	"github.com/marcus/chatview/internal/scroll"
	"github.com/marcus/chatview/internal/virtual"
)

// ViewportState is the externally visible scroll state.
type ViewportState struct {
	Paused        bool
	AutoFollowing bool
	InitialLoad   bool
}

// Layout is the width-aware layout service for structured messages.
type Layout interface {
	SetWidth(width int)
	// Height returns the row height of s at the current width, or 0 when it
	// cannot be computed.
	Height(s message.Structured) int
}

// Controller is the list engine. All methods must be called from the event
// loop that runs the scheduler.
type Controller struct {
	cfg    Config
	sched  schedule.Scheduler
	layout Layout
	rec    Recorder

	list       *virtual.List
	oracle     *height.Oracle
	scroll     *scroll.Controller
	freeze     *freeze.Buffer
	classifier loadphase.Classifier
	bulk       *loadphase.Settler
	sweep      *loadphase.Settler
	jump       *replyjump.Coordinator

	msgs    []message.Message
	entries []message.Entry

	deleted  map[string]bool
	cleared  map[string]string // user id -> last message id at clear time
	reported *lru.Cache[uint64, struct{}]

	generation  uint64
	width       int
	widthSynced bool
	widthCancel schedule.Cancel
	graceCancel schedule.Cancel

	initialLoad bool
	freezeShift int
	unseen      int
	highlighted string
	closed      bool
}

// New creates a Controller. lay may be nil when every structured message
// already carries its height.
func New(cfg Config, sched schedule.Scheduler, lay Layout) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:     cfg,
		sched:   sched,
		layout:  lay,
		rec:     nopRecorder{},
		deleted: make(map[string]bool),
		cleared: make(map[string]string),
	}
	// Size is always positive after withDefaults.
	c.reported, _ = lru.New[uint64, struct{}](cfg.BufferSize + cfg.Slack)

	est := height.NewEstimator(cfg.Profile)
	est.SetTimestamps(cfg.Timestamps)

	c.list = virtual.NewList(c)
	c.list.OnScroll(c.OnScroll)
	c.oracle = height.New(height.Config{
		Tolerance:  cfg.Tolerance,
		BufferSize: cfg.BufferSize,
		Slack:      cfg.Slack,
	}, est, sched, reasonDriver{c, "measure"})
	c.oracle.Resets().OnFlush = c.afterMeasure
	c.scroll = scroll.New(cfg.Scroll)
	c.freeze = freeze.New()
	c.classifier = loadphase.NewClassifier(cfg.BulkThreshold)
	c.bulk = loadphase.NewSettler(sched, cfg.Settle)
	c.sweep = loadphase.NewSettler(sched, loadphase.SettleConfig{Passes: cfg.Settle.Passes})
	c.jump = replyjump.New(cfg.Jump, sched, reasonDriver{c, "jump"}, jumpHost{c})
	return c
}

// SetRecorder installs an activity recorder.
func (c *Controller) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	c.rec = r
	c.oracle.SetRecorder(r)
	c.jump.SetRecorder(r)
}

// List returns the virtual list the host renders from.
func (c *Controller) List() *virtual.List { return c.list }

// Oracle returns the height oracle.
func (c *Controller) Oracle() *height.Oracle { return c.oracle }

// Len implements virtual.Source.
func (c *Controller) Len() int { return len(c.entries) }

// SizeOf implements virtual.Source. While frozen, rows fall back from the
// live cache to the snapshot before precomputed and estimated heights.
func (c *Controller) SizeOf(index int) int {
	if c.freeze.Frozen() {
		if h, ok := c.oracle.Cached(index); ok {
			return h
		}
		if e, ok := c.oracle.Entry(index); ok {
			if h, ok := c.freeze.ResolveEntry(index, c.freezeShift, e); ok {
				return h
			}
		}
	}
	return c.oracle.Height(index)
}

// Entry returns the normalized message at index.
func (c *Controller) Entry(index int) (message.Entry, bool) {
	return c.oracle.Entry(index)
}

// Entries returns the current list. The slice must not be modified.
func (c *Controller) Entries() []message.Entry { return c.entries }

// State returns the viewport state.
func (c *Controller) State() ViewportState {
	paused, following := c.scroll.State()
	return ViewportState{Paused: paused, AutoFollowing: following, InitialLoad: c.initialLoad}
}

// Frozen returns the pause snapshot, or nil when not paused.
func (c *Controller) Frozen() *freeze.Snapshot { return c.freeze.Snapshot() }

// Unseen returns how many messages arrived since the list paused.
func (c *Controller) Unseen() int { return c.unseen }

// Highlighted returns the identity of the highlighted message, if any.
func (c *Controller) Highlighted() string { return c.highlighted }

// Generation returns the render generation, bumped on every width change.
func (c *Controller) Generation() uint64 { return c.generation }

// Width returns the last viewport width.
func (c *Controller) Width() int { return c.width }

// JumpPhase returns the phase of the current or last reply jump.
func (c *Controller) JumpPhase() replyjump.Phase { return c.jump.Phase() }

// SetTimestamps toggles the timestamp gutter. It starts a new render
// generation since every row's width changes.
func (c *Controller) SetTimestamps(on bool) {
	if c.cfg.Timestamps == on {
		return
	}
	c.cfg.Timestamps = on
	c.oracle.Estimator().SetTimestamps(on)
	if c.widthSynced {
		c.syncWidth()
	}
}

// SetMessages adopts the current message list from the source buffer.
func (c *Controller) SetMessages(ms []message.Message) {
	if c.closed {
		return
	}
	prev := c.entries
	next := c.normalize(ms)

	evicted := evictedCount(prev, next)
	added := len(next) - len(prev) + evicted
	anchor := 0
	if evicted > 0 && !c.scroll.Following() {
		anchor = c.list.Start(evicted)
	}

	c.msgs = ms
	c.entries = next
	c.oracle.Reconcile(next)
	c.pruneModeration()

	phase := c.classifier.Classify(len(prev), len(next))
	if phase == loadphase.None && evicted > 0 && added > 0 {
		// A full buffer appends and evicts in the same update.
		phase = loadphase.Incremental
	}

	switch phase {
	case loadphase.Bulk:
		c.rec.Loaded(phase.String(), len(next))
		c.startBulk()
	case loadphase.Incremental:
		c.rec.Loaded(phase.String(), added)
		c.appendIncremental(evicted, added, anchor)
	default:
		if len(next) != len(prev) || evicted > 0 || !sameTail(prev, next) {
			c.invalidate("replace", 0)
		}
	}
}

func (c *Controller) normalize(ms []message.Message) []message.Entry {
	out := make([]message.Entry, 0, len(ms))
	for _, m := range ms {
		switch s := m.(type) {
		case message.Structured:
			out = append(out, message.Normalize(c.laidOut(s)))
		case *message.Structured:
			if s == nil {
				continue
			}
			out = append(out, message.Normalize(c.laidOut(*s)))
		default:
			out = append(out, message.Normalize(m))
		}
	}
	return out
}

func (c *Controller) laidOut(s message.Structured) message.Structured {
	if c.layout != nil && c.widthSynced {
		s.Layout.Height = c.layout.Height(s)
	}
	return s
}

// evictedCount returns how many rows were dropped from the front of prev to
// produce next. It anchors on the first row of next that has an identity, so
// rows without one at the head do not hide an eviction.
func evictedCount(prev, next []message.Entry) int {
	if len(prev) == 0 || len(next) == 0 {
		return 0
	}
	for j, e := range next {
		if e.ID == "" {
			continue
		}
		for i, p := range prev {
			if p.ID == e.ID {
				return max(i-j, 0)
			}
		}
		return 0
	}
	return 0
}

func sameTail(prev, next []message.Entry) bool {
	if len(prev) == 0 || len(next) == 0 {
		return len(prev) == len(next)
	}
	a, b := prev[len(prev)-1], next[len(next)-1]
	return a.ID == b.ID && a.Text == b.Text
}

func (c *Controller) startBulk() {
	c.oracle.Clear()
	c.oracle.Reconcile(c.entries)
	c.invalidate("bulk", 0)
	c.setInitialLoad(true)
	c.bulk.Run(loadphase.Plan{
		Pass: func() {
			c.invalidate("settle", 0)
			if !c.scroll.Paused() {
				c.scrollToLast()
			}
		},
		Done: func() { c.setInitialLoad(false) },
	})
}

func (c *Controller) appendIncremental(evicted, added, anchor int) {
	n := len(c.entries)
	if c.scroll.Paused() {
		c.unseen += added
		c.freezeShift += evicted
		if evicted > 0 {
			// Every index moved; keep the rows under the user in place.
			c.invalidate("evict", 0)
			c.list.Shift(-anchor)
		}
		return
	}

	if evicted > 0 {
		c.invalidate("evict", 0)
	} else {
		c.invalidate("append", max(0, n-2))
	}
	if c.scroll.Following() {
		c.scrollToLast()
	} else if anchor > 0 {
		c.list.Shift(-anchor)
	}
}

func (c *Controller) scrollToLast() {
	if n := len(c.entries); n > 0 {
		c.list.ScrollTo(n-1, virtual.AlignEnd)
	}
}

func (c *Controller) setInitialLoad(on bool) {
	c.initialLoad = on
	c.scroll.SetInitialLoad(on)
}

func (c *Controller) invalidate(reason string, index int) {
	c.list.InvalidateFrom(index)
	c.rec.Invalidation(reason, index)
}

// afterMeasure keeps a following list pinned to the bottom after measured
// rows changed the content height.
func (c *Controller) afterMeasure(int) {
	if c.closed {
		return
	}
	if paused, following := c.scroll.State(); following && !paused {
		c.scrollToLast()
	}
}

// OnScroll feeds a viewport scroll into the pause state machine.
func (c *Controller) OnScroll(e virtual.ScrollEvent) {
	if c.closed {
		return
	}
	switch c.scroll.OnScroll(e) {
	case scroll.Paused:
		c.enterPause()
	case scroll.Resumed:
		c.exitPause()
	}
}

// ScrollBy scrolls on behalf of the user.
func (c *Controller) ScrollBy(delta int) {
	if c.closed || delta == 0 {
		return
	}
	c.list.ScrollBy(delta)
}

func (c *Controller) enterPause() {
	heights := make(map[int]int, len(c.entries))
	for i := range c.entries {
		heights[i] = c.list.SizeAt(i)
	}
	c.freeze.OnPauseEnter(c.entries, heights)
	c.freezeShift = 0
	c.unseen = 0
	c.rec.PauseChanged(true)
}

func (c *Controller) exitPause() {
	c.freeze.OnPauseExit()
	c.freezeShift = 0
	c.unseen = 0
	c.rec.PauseChanged(false)
	c.invalidate("resume", 0)
	c.startResumeGrace()
	c.scrollToLast()
}

func (c *Controller) startResumeGrace() {
	if c.graceCancel != nil {
		c.graceCancel()
	}
	c.scroll.SetResumeGrace(true)
	c.graceCancel = c.sched.After(c.cfg.ResumeGrace, func() {
		c.graceCancel = nil
		c.scroll.SetResumeGrace(false)
	})
}

// Resume returns to auto-follow and scrolls to the newest message. It reports
// whether the list was paused.
func (c *Controller) Resume() bool {
	if c.closed {
		return false
	}
	c.jump.Cancel()
	wasPaused := c.scroll.Resume()
	if wasPaused {
		c.exitPause()
	} else {
		c.scrollToLast()
	}
	return wasPaused
}

// JumpTo scrolls to the message with identity id. It returns false, leaving
// the pause state alone, when the message is no longer in the list.
func (c *Controller) JumpTo(id string) bool {
	if c.closed {
		return false
	}
	return c.jump.JumpTo(id)
}

// SetViewport sets the viewport size. The first width is synced to the layout
// service immediately, later widths after a debounce.
func (c *Controller) SetViewport(width, h int) {
	if c.closed {
		return
	}
	if h != c.list.ClientHeight() {
		c.list.SetClientHeight(h)
		if paused, following := c.scroll.State(); following && !paused {
			c.scrollToLast()
		}
	}
	if width <= 0 || width == c.width {
		return
	}
	c.width = width
	if !c.widthSynced {
		c.syncWidth()
		return
	}
	if c.widthCancel != nil {
		c.widthCancel()
	}
	c.widthCancel = c.sched.After(c.cfg.WidthDebounce, c.syncWidth)
}

// syncWidth starts a new render generation at the current width.
func (c *Controller) syncWidth() {
	c.widthCancel = nil
	c.widthSynced = true
	c.generation++
	c.reported.Purge()

	if c.layout != nil {
		c.layout.SetWidth(c.width)
	}
	c.oracle.Estimator().SetWidth(c.width)
	c.entries = c.normalize(c.msgs)
	c.oracle.Clear()
	c.oracle.Reconcile(c.entries)
	c.invalidate("width", 0)

	if paused, following := c.scroll.State(); following && !paused {
		c.scrollToLast()
	}
}

// RowRendered reports the rendered height of the row at index. Each
// (identity, deleted) pair is reported once per render generation; rows
// without identity always report. It returns whether the report reached the
// oracle.
func (c *Controller) RowRendered(index, h int, deleted bool) bool {
	if c.closed {
		return false
	}
	e, ok := c.oracle.Entry(index)
	if !ok {
		return false
	}
	if e.ID != "" {
		key := reportKey(e.ID, deleted, c.generation)
		if c.reported.Contains(key) {
			return false
		}
		c.reported.Add(key, struct{}{})
	}
	c.oracle.ReportMeasured(index, h, e.ID)
	return true
}

func reportKey(id string, deleted bool, generation uint64) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(id)
	var buf [9]byte
	if deleted {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint64(buf[1:], generation)
	_, _ = d.Write(buf[:])
	return d.Sum64()
}

// MarkDeleted marks a message as deleted by moderation.
func (c *Controller) MarkDeleted(id string) {
	if id == "" || c.closed {
		return
	}
	c.deleted[id] = true
}

// ClearUser marks every current message of userID as cleared. Messages the
// user sends afterwards are not affected.
func (c *Controller) ClearUser(userID string) {
	if userID == "" || c.closed {
		return
	}
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		if e.UserID == userID && e.ID != "" {
			c.cleared[userID] = e.ID
			return
		}
	}
}

// IsDeleted reports whether the row at index should render as a deletion
// placeholder.
func (c *Controller) IsDeleted(index int) bool {
	e, ok := c.oracle.Entry(index)
	if !ok {
		return false
	}
	if e.ID != "" && c.deleted[e.ID] {
		return true
	}
	if e.UserID == "" {
		return false
	}
	cutoff, ok := c.cleared[e.UserID]
	if !ok {
		return false
	}
	ci, ok := c.oracle.IndexOf(cutoff)
	return ok && index <= ci
}

func (c *Controller) pruneModeration() {
	if len(c.deleted) > c.cfg.BufferSize+c.cfg.Slack {
		maps.DeleteFunc(c.deleted, func(id string, _ bool) bool {
			_, ok := c.oracle.IndexOf(id)
			return !ok
		})
	}
	maps.DeleteFunc(c.cleared, func(_ string, cutoff string) bool {
		_, ok := c.oracle.IndexOf(cutoff)
		return !ok
	})
}

// Reset empties the list, e.g. on channel switch. The next SetMessages with
// a backfill is classified as a bulk load again.
func (c *Controller) Reset() {
	if c.closed {
		return
	}
	c.bulk.Stop()
	c.sweep.Stop()
	c.jump.Cancel()
	c.oracle.Resets().Stop()
	if c.graceCancel != nil {
		c.graceCancel()
		c.graceCancel = nil
	}

	c.msgs = nil
	c.entries = nil
	c.oracle.Clear()
	c.oracle.Reconcile(nil)
	c.freeze.OnPauseExit()
	c.scroll.Reset()
	c.setInitialLoad(false)
	clear(c.deleted)
	clear(c.cleared)
	c.reported.Purge()
	c.generation++
	c.freezeShift = 0
	c.unseen = 0
	c.highlighted = ""
	c.invalidate("reset", 0)
	c.list.ScrollToEnd()
}

// Close invalidates every pending frame callback and timer. The controller
// ignores all calls afterwards.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.bulk.Stop()
	c.sweep.Stop()
	c.jump.Close()
	c.oracle.Close()
	if c.widthCancel != nil {
		c.widthCancel()
	}
	if c.graceCancel != nil {
		c.graceCancel()
	}
}

// reasonDriver tags invalidations with their cause before passing them to the
// list.
type reasonDriver struct {
	c      *Controller
	reason string
}

func (d reasonDriver) InvalidateFrom(index int) { d.c.invalidate(d.reason, index) }

func (d reasonDriver) ScrollTo(index int, align virtual.Alignment) { d.c.list.ScrollTo(index, align) }

// jumpHost exposes the controller to the reply jump coordinator.
type jumpHost struct{ c *Controller }

func (h jumpHost) IndexOf(id string) (int, bool) { return h.c.oracle.IndexOf(id) }

func (h jumpHost) ForcePause() {
	if h.c.scroll.ForcePause() {
		h.c.enterPause()
	}
}

func (h jumpHost) Highlight(id string) { h.c.highlighted = id }

func (h jumpHost) ClearHighlight(id string) {
	if h.c.highlighted == id {
		h.c.highlighted = ""
	}
}

func (h jumpHost) Sweep() {
	h.c.sweep.Run(loadphase.Plan{
		Pass: func() { h.c.invalidate("sweep", 0) },
	})
}
