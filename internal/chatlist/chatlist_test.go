package chatlist

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/replyjump"
	"github.com/marcus/chatview/internal/schedule"
)

type inval struct {
	reason string
	index  int
}

type testRecorder struct {
	invalidations []inval
	loads         []string
	pauses        []bool
	reports       []string
	jumps         []string
}

func (r *testRecorder) MeasurementReport(result string) { r.reports = append(r.reports, result) }
func (r *testRecorder) Jump(result string)              { r.jumps = append(r.jumps, result) }
func (r *testRecorder) Invalidation(reason string, index int) {
	r.invalidations = append(r.invalidations, inval{reason, index})
}
func (r *testRecorder) Loaded(phase string, n int) { r.loads = append(r.loads, fmt.Sprintf("%s:%d", phase, n)) }
func (r *testRecorder) PauseChanged(p bool)        { r.pauses = append(r.pauses, p) }

func (r *testRecorder) reasons() []string {
	out := make([]string, 0, len(r.invalidations))
	for _, i := range r.invalidations {
		out = append(out, i.reason)
	}
	return out
}

type fakeLayout struct {
	widths []int
	perCol int
}

func (l *fakeLayout) SetWidth(w int) { l.widths = append(l.widths, w) }
func (l *fakeLayout) Height(s message.Structured) int {
	if len(l.widths) == 0 {
		return 0
	}
	w := l.widths[len(l.widths)-1]
	return (len(s.Text)*l.perCol + w - 1) / w
}

func legacyLine(id, text string) message.Message {
	return message.Legacy{Raw: fmt.Sprintf("@id=%s;user-id=u-%s :u!u@u PRIVMSG #c :%s", id, id, text)}
}

func batch(from, to int) []message.Message {
	out := make([]message.Message, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, legacyLine(fmt.Sprintf("m%d", i), fmt.Sprintf("hello %d", i)))
	}
	return out
}

func newPixelController(t *testing.T) (*Controller, *schedule.Manual, *testRecorder) {
	t.Helper()
	sched := schedule.NewManual()
	c := New(PixelConfig(14), sched, nil)
	rec := &testRecorder{}
	c.SetRecorder(rec)
	c.SetViewport(300, 100)
	rec.invalidations = nil
	t.Cleanup(c.Close)
	return c, sched, rec
}

// loadAndSettle bulk loads n short messages (33px each) and waits out the
// initial-load grace.
func loadAndSettle(t *testing.T, c *Controller, sched *schedule.Manual, n int) {
	t.Helper()
	c.SetMessages(batch(0, n))
	sched.Advance(3 * time.Second)
	require.False(t, c.State().InitialLoad)
}

func TestBulkLoadScenario(t *testing.T) {
	c, sched, rec := newPixelController(t)

	msgs := []message.Message{
		legacyLine("m0", "hello"),
		legacyLine("m1", strings.Repeat("a", 40)),
		legacyLine("m2", strings.Repeat("b", 31)),
		legacyLine("m3", strings.Repeat("c", 70)),
		message.Legacy{Raw: "@emotes=25:0-4;id=m4 :u!u@u PRIVMSG #c :Kappa"},
		message.Legacy{Raw: "@id=m5;reply-parent-msg-id=m0 :u!u@u PRIVMSG #c :hi"},
	}
	want := []int{33, 54, 33, 75, 40, 53}

	c.SetMessages(msgs)
	assert.Equal(t, []inval{{"bulk", 0}}, rec.invalidations)
	assert.Equal(t, []string{"bulk:6"}, rec.loads)
	assert.True(t, c.State().InitialLoad)
	for i, w := range want {
		assert.Equal(t, w, c.SizeOf(i), "row %d", i)
	}

	sched.Frame()
	assert.Contains(t, rec.invalidations, inval{"settle", 0})
	l := c.List()
	assert.Equal(t, 288, l.ScrollHeight())
	assert.Equal(t, 188, l.Offset())
	rows := l.Visible()
	require.NotEmpty(t, rows)
	assert.Equal(t, 5, rows[len(rows)-1].Index)

	sched.Advance(3*time.Second - schedule.DefaultFrameInterval - time.Millisecond)
	assert.True(t, c.State().InitialLoad)
	sched.Advance(time.Millisecond)
	assert.False(t, c.State().InitialLoad)
	assert.True(t, c.State().AutoFollowing)

	settles := 0
	for _, r := range rec.reasons() {
		if r == "settle" {
			settles++
		}
	}
	assert.Equal(t, 4, settles)
}

func TestBulkLoad_IgnoresScrollDuringInitialLoad(t *testing.T) {
	c, _, _ := newPixelController(t)
	c.SetMessages(batch(0, 30))
	c.ScrollBy(-500)
	assert.False(t, c.State().Paused)
}

func TestPausedScenario(t *testing.T) {
	c, sched, rec := newPixelController(t)
	loadAndSettle(t, c, sched, 30)
	l := c.List()
	require.Equal(t, 890, l.Offset())

	c.ScrollBy(-300)
	st := c.State()
	require.True(t, st.Paused)
	assert.False(t, st.AutoFollowing)
	assert.Equal(t, []bool{true}, rec.pauses)

	snap := c.Frozen()
	require.NotNil(t, snap)
	heights := make(map[int]int, len(snap.Heights))
	for k, v := range snap.Heights {
		heights[k] = v
	}
	require.Equal(t, 30, snap.Len())

	rec.invalidations = nil
	c.SetMessages(batch(0, 40))

	assert.Same(t, snap, c.Frozen())
	assert.Equal(t, 30, c.Frozen().Len())
	assert.Equal(t, heights, c.Frozen().Heights)
	assert.Equal(t, 40, c.Len())
	assert.Equal(t, 10, c.Unseen())
	assert.Empty(t, rec.invalidations, "no structural reset while paused")
	assert.Equal(t, 40*33, l.ScrollHeight())
	assert.Equal(t, 590, l.Offset(), "view does not move")

	assert.True(t, c.Resume())
	assert.Nil(t, c.Frozen())
	assert.Zero(t, c.Unseen())
	assert.Equal(t, 40*33-100, l.Offset())
	rows := l.Visible()
	assert.Equal(t, 39, rows[len(rows)-1].Index)
	st = c.State()
	assert.False(t, st.Paused)
	assert.True(t, st.AutoFollowing)
	assert.Equal(t, []bool{true, false}, rec.pauses)
}

func TestResumeGraceSwallowsSettlingScroll(t *testing.T) {
	c, sched, _ := newPixelController(t)
	loadAndSettle(t, c, sched, 30)
	c.ScrollBy(-300)
	require.True(t, c.State().Paused)
	c.Resume()

	c.ScrollBy(-300)
	assert.False(t, c.State().Paused, "inside resume grace")

	sched.Advance(DefaultResumeGrace)
	c.ScrollBy(-300)
	assert.True(t, c.State().Paused)
}

func TestScrollBackToBottomResumes(t *testing.T) {
	c, sched, _ := newPixelController(t)
	loadAndSettle(t, c, sched, 30)
	c.ScrollBy(-300)
	require.True(t, c.State().Paused)

	c.ScrollBy(290)
	assert.False(t, c.State().Paused)
	assert.Nil(t, c.Frozen())
	assert.Equal(t, 890, c.List().Offset())
}

func TestIncrementalWhileFollowing(t *testing.T) {
	c, sched, rec := newPixelController(t)
	loadAndSettle(t, c, sched, 10)
	rec.invalidations = nil
	rec.loads = nil

	c.SetMessages(batch(0, 12))
	assert.Equal(t, []inval{{"append", 10}}, rec.invalidations)
	assert.Equal(t, []string{"incremental:2"}, rec.loads)
	assert.Equal(t, 12*33-100, c.List().Offset())
}

func TestIncrementalBetweenThresholdsDoesNotScroll(t *testing.T) {
	c, sched, _ := newPixelController(t)
	loadAndSettle(t, c, sched, 10)
	c.ScrollBy(-80)
	st := c.State()
	require.False(t, st.Paused)
	require.False(t, st.AutoFollowing)
	off := c.List().Offset()

	c.SetMessages(batch(0, 11))
	assert.Equal(t, off, c.List().Offset())
}

func TestCappedBufferEvictionKeepsPausedViewAnchored(t *testing.T) {
	c, sched, rec := newPixelController(t)
	buf := message.NewBuffer(30)
	buf.Append(batch(0, 30)...)
	c.SetMessages(buf.Messages())
	sched.Advance(3 * time.Second)

	c.ScrollBy(-300)
	require.True(t, c.State().Paused)
	top, ok := c.List().IndexAt(0)
	require.True(t, ok)
	topID := c.Entries()[top].ID

	rec.invalidations = nil
	buf.Append(batch(30, 35)...)
	c.SetMessages(buf.Messages())

	assert.Equal(t, 30, c.Len())
	assert.Equal(t, 5, c.Unseen())
	assert.Equal(t, []inval{{"evict", 0}}, rec.invalidations)
	now, ok := c.List().IndexAt(0)
	require.True(t, ok)
	assert.Equal(t, topID, c.Entries()[now].ID)
	assert.Equal(t, 590-5*33, c.List().Offset())
}

func TestCappedBufferEvictionWithUntaggedHead(t *testing.T) {
	c, sched, rec := newPixelController(t)
	buf := message.NewBuffer(20)
	ms := batch(0, 20)
	ms[1] = message.Legacy{Raw: ":u!u@u PRIVMSG #c :hello 1"}
	buf.Append(ms...)
	c.SetMessages(buf.Messages())
	sched.Advance(3 * time.Second)

	c.ScrollBy(-300)
	require.True(t, c.State().Paused)
	top, ok := c.List().IndexAt(0)
	require.True(t, ok)
	topID := c.Entries()[top].ID
	require.NotEmpty(t, topID)

	for i := 20; i < 23; i++ {
		rec.loads = nil
		buf.Append(batch(i, i+1)...)
		c.SetMessages(buf.Messages())
		assert.Equal(t, []string{"incremental:1"}, rec.loads, "m%d", i)
		now, ok := c.List().IndexAt(0)
		require.True(t, ok)
		assert.Equal(t, topID, c.Entries()[now].ID, "m%d", i)
	}
	assert.Equal(t, 3, c.Unseen())
}

func TestEvictedCount(t *testing.T) {
	entries := func(ids ...string) []message.Entry {
		out := make([]message.Entry, 0, len(ids))
		for _, id := range ids {
			out = append(out, message.Entry{ID: id})
		}
		return out
	}
	tests := []struct {
		name       string
		prev, next []message.Entry
		want       int
	}{
		{"empty prev", nil, entries("a"), 0},
		{"append only", entries("a", "b"), entries("a", "b", "c"), 0},
		{"evict two", entries("a", "b", "c"), entries("c", "d", "e"), 2},
		{"untagged head", entries("a", "", "c"), entries("", "c", "d"), 1},
		{"untagged head evicted", entries("", "b", "c"), entries("b", "c", "d"), 1},
		{"no identities", entries("", ""), entries("", ""), 0},
		{"unknown identity", entries("a", "b"), entries("x", "y"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evictedCount(tt.prev, tt.next))
		})
	}
}

func TestResumeWhenNotPaused(t *testing.T) {
	c, sched, rec := newPixelController(t)
	loadAndSettle(t, c, sched, 10)
	c.ScrollBy(-80)
	require.False(t, c.State().Paused)
	rec.invalidations = nil

	assert.False(t, c.Resume())
	assert.Empty(t, rec.pauses)
	assert.Empty(t, rec.invalidations)
	assert.Equal(t, 10*33-100, c.List().Offset())
	assert.True(t, c.State().AutoFollowing)

	c.ScrollBy(-300)
	assert.True(t, c.State().Paused, "no resume grace after a no-op resume")
}

func TestCappedBufferEvictionWhileFollowing(t *testing.T) {
	c, sched, rec := newPixelController(t)
	buf := message.NewBuffer(10)
	buf.Append(batch(0, 10)...)
	c.SetMessages(buf.Messages())
	sched.Advance(3 * time.Second)
	rec.loads = nil

	buf.Append(batch(10, 11)...)
	c.SetMessages(buf.Messages())
	assert.Equal(t, []string{"incremental:1"}, rec.loads)
	rows := c.List().Visible()
	entry, _ := c.Entry(rows[len(rows)-1].Index)
	assert.Equal(t, "m10", entry.ID)
}

func TestRowRendered_DedupesPerIdentityStateAndGeneration(t *testing.T) {
	c, sched, rec := newPixelController(t)
	loadAndSettle(t, c, sched, 3)
	rec.reports = nil

	assert.True(t, c.RowRendered(1, 40, false))
	assert.False(t, c.RowRendered(1, 40, false))
	assert.False(t, c.RowRendered(1, 60, false), "same identity and state")
	assert.True(t, c.RowRendered(1, 21, true), "deleted state reports again")
	assert.Equal(t, []string{"applied", "applied"}, rec.reports)

	c.SetViewport(320, 100)
	sched.Advance(DefaultWidthDebounce)
	assert.True(t, c.RowRendered(1, 40, false), "new generation reports again")
	assert.False(t, c.RowRendered(9, 40, false))
}

func TestRowRendered_ResetIsCoalescedAndFollows(t *testing.T) {
	c, sched, rec := newPixelController(t)
	loadAndSettle(t, c, sched, 30)
	rec.invalidations = nil

	c.RowRendered(29, 50, false)
	c.RowRendered(27, 50, false)
	c.RowRendered(28, 50, false)
	assert.Empty(t, rec.invalidations)

	sched.Frame()
	assert.Equal(t, []inval{{"measure", 27}}, rec.invalidations)
	assert.Equal(t, 27*33+3*50-100, c.List().Offset(), "still pinned to the bottom")
}

func TestFrozenRowsPreferLiveMeasurement(t *testing.T) {
	c, sched, _ := newPixelController(t)
	loadAndSettle(t, c, sched, 30)
	c.ScrollBy(-300)
	require.True(t, c.State().Paused)

	assert.Equal(t, 33, c.SizeOf(20))
	c.RowRendered(20, 70, false)
	assert.Equal(t, 70, c.SizeOf(20))
	assert.Equal(t, 33, c.Frozen().Heights[20])
}

func TestWidthSync(t *testing.T) {
	sched := schedule.NewManual()
	lay := &fakeLayout{perCol: 100}
	c := New(PixelConfig(14), sched, lay)
	t.Cleanup(c.Close)

	c.SetMessages([]message.Message{message.Structured{ID: "s", Text: strings.Repeat("x", 5)}})
	assert.Equal(t, 33, c.SizeOf(0), "no width yet, estimate")

	c.SetViewport(250, 100)
	assert.Equal(t, []int{250}, lay.widths, "first width is immediate")
	assert.Equal(t, uint64(1), c.Generation())
	assert.Equal(t, 2, c.SizeOf(0))

	c.SetViewport(400, 100)
	c.SetViewport(500, 100)
	assert.Equal(t, []int{250}, lay.widths)
	sched.Advance(DefaultWidthDebounce - time.Millisecond)
	assert.Equal(t, []int{250}, lay.widths)
	sched.Advance(time.Millisecond)
	assert.Equal(t, []int{250, 500}, lay.widths, "debounced to the last width")
	assert.Equal(t, uint64(2), c.Generation())
	assert.Equal(t, 1, c.SizeOf(0))

	c.SetViewport(500, 80)
	sched.Advance(time.Second)
	assert.Equal(t, []int{250, 500}, lay.widths, "height changes do not resync")
}

func TestJumpTo(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		c, sched, rec := newPixelController(t)
		loadAndSettle(t, c, sched, 10)
		before := c.State()
		assert.False(t, c.JumpTo("nope"))
		assert.Equal(t, before, c.State())
		assert.Nil(t, c.Frozen())
		assert.Equal(t, []string{"not-found"}, rec.jumps)
	})

	t.Run("found", func(t *testing.T) {
		c, sched, rec := newPixelController(t)
		loadAndSettle(t, c, sched, 30)
		rec.invalidations = nil

		require.True(t, c.JumpTo("m5"))
		assert.True(t, c.State().Paused)
		assert.NotNil(t, c.Frozen())
		assert.Equal(t, "m5", c.Highlighted())
		assert.Equal(t, inval{"jump", 0}, rec.invalidations[0])
		// Row 5 centred: 5*33 + 16 - 50.
		assert.Equal(t, 131, c.List().Offset())

		sched.Advance(time.Second)
		assert.Equal(t, replyjump.PhaseDone, c.JumpPhase())
		assert.Contains(t, rec.invalidations, inval{"jump", 2})
		assert.True(t, c.State().Paused, "jump leaves the list paused")

		sched.Advance(time.Second)
		assert.Contains(t, rec.invalidations, inval{"sweep", 0})
		assert.Empty(t, c.Highlighted())
	})

	t.Run("recent message", func(t *testing.T) {
		c, sched, _ := newPixelController(t)
		loadAndSettle(t, c, sched, 30)

		require.True(t, c.JumpTo("m28"))
		st := c.State()
		assert.True(t, st.Paused)
		assert.False(t, st.AutoFollowing, "following waits for a resume")
	})

	t.Run("resume cancels corrections", func(t *testing.T) {
		c, sched, _ := newPixelController(t)
		loadAndSettle(t, c, sched, 30)
		require.True(t, c.JumpTo("m5"))
		c.Resume()
		sched.Advance(time.Second)
		assert.Equal(t, 890, c.List().Offset())
	})
}

func TestModeration(t *testing.T) {
	c, sched, _ := newPixelController(t)
	loadAndSettle(t, c, sched, 5)

	c.MarkDeleted("m1")
	assert.True(t, c.IsDeleted(1))
	assert.False(t, c.IsDeleted(0))

	c.ClearUser("u-m3")
	assert.True(t, c.IsDeleted(3))
	assert.False(t, c.IsDeleted(4))
	assert.False(t, c.IsDeleted(99))

	// A later message from the cleared user is shown.
	msgs := append(batch(0, 5), legacyLine("m5", "back again"))
	msgs[5] = message.Legacy{Raw: "@id=m5;user-id=u-m3 :u!u@u PRIVMSG #c :back again"}
	c.SetMessages(msgs)
	assert.True(t, c.IsDeleted(3))
	assert.False(t, c.IsDeleted(5))
}

func TestReset(t *testing.T) {
	c, sched, rec := newPixelController(t)
	loadAndSettle(t, c, sched, 10)
	c.ScrollBy(-200)
	c.MarkDeleted("m1")
	c.Reset()

	assert.Zero(t, c.Len())
	assert.Nil(t, c.Frozen())
	assert.False(t, c.State().Paused)
	assert.False(t, c.IsDeleted(1))

	rec.loads = nil
	c.SetMessages(batch(100, 110))
	assert.Equal(t, []string{"bulk:10"}, rec.loads)
}

func TestClose_PendingCallbacksAreNoops(t *testing.T) {
	c, sched, rec := newPixelController(t)
	c.SetMessages(batch(0, 10))
	c.RowRendered(3, 80, false)
	c.JumpTo("m2")
	rec.invalidations = nil

	c.Close()
	sched.Advance(5 * time.Second)
	assert.Empty(t, rec.invalidations)
	assert.True(t, c.State().InitialLoad, "grace deadline never fired")

	c.SetMessages(batch(0, 20))
	assert.Equal(t, 10, c.Len())
	assert.False(t, c.JumpTo("m1"))
}

func TestSetTimestampsStartsNewGeneration(t *testing.T) {
	c, sched, _ := newPixelController(t)
	loadAndSettle(t, c, sched, 3)
	gen := c.Generation()
	c.SetTimestamps(true)
	assert.Equal(t, gen+1, c.Generation())
	c.SetTimestamps(true)
	assert.Equal(t, gen+1, c.Generation())
}
