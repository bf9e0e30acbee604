package replyjump

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marcus/chatview/internal/schedule"
	"github.com/marcus/chatview/internal/virtual"
)

type mockDriver struct {
	mock.Mock
}

func (m *mockDriver) InvalidateFrom(index int) { m.Called(index) }

func (m *mockDriver) ScrollTo(index int, align virtual.Alignment) { m.Called(index, align) }

type fakeHost struct {
	index       map[string]int
	pauses      int
	highlighted string
	sweeps      int
}

func (h *fakeHost) IndexOf(id string) (int, bool) {
	i, ok := h.index[id]
	return i, ok
}
func (h *fakeHost) ForcePause()         { h.pauses++ }
func (h *fakeHost) Highlight(id string) { h.highlighted = id }
func (h *fakeHost) ClearHighlight(id string) {
	if h.highlighted == id {
		h.highlighted = ""
	}
}
func (h *fakeHost) Sweep() { h.sweeps++ }

type jumpRecorder []string

func (r *jumpRecorder) Jump(result string) { *r = append(*r, result) }

func setup(index map[string]int) (*Coordinator, *schedule.Manual, *mockDriver, *fakeHost) {
	sched := schedule.NewManual()
	drv := &mockDriver{}
	drv.On("InvalidateFrom", mock.Anything).Return()
	drv.On("ScrollTo", mock.Anything, mock.Anything).Return()
	host := &fakeHost{index: index}
	return New(DefaultConfig(), sched, drv, host), sched, drv, host
}

type call struct {
	method string
	args   []any
}

func calls(m *mockDriver) []call {
	out := make([]call, 0, len(m.Calls))
	for _, c := range m.Calls {
		out = append(out, call{c.Method, c.Arguments})
	}
	return out
}

func TestJumpTo_NotFoundLeavesStateAlone(t *testing.T) {
	c, sched, drv, host := setup(map[string]int{"a": 0})
	rec := &jumpRecorder{}
	c.SetRecorder(rec)

	assert.False(t, c.JumpTo("missing"))
	assert.False(t, c.JumpTo(""))
	assert.Zero(t, host.pauses)
	assert.Empty(t, host.highlighted)
	assert.Empty(t, drv.Calls)
	assert.Zero(t, sched.Pending())
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.Equal(t, jumpRecorder{"not-found", "not-found"}, *rec)
}

func TestJumpTo_SynchronousPhases(t *testing.T) {
	c, _, drv, host := setup(map[string]int{"p": 40})
	var phases []Phase
	c.OnPhase = func(p Phase) { phases = append(phases, p) }

	require.True(t, c.JumpTo("p"))
	assert.Equal(t, []Phase{PhaseResolve, PhasePause, PhaseReset, PhaseScroll, PhaseHighlight}, phases)
	assert.Equal(t, 1, host.pauses)
	assert.Equal(t, "p", host.highlighted)
	assert.Equal(t, []call{
		{"InvalidateFrom", []any{0}},
		{"ScrollTo", []any{40, virtual.AlignCenter}},
	}, calls(drv))
	assert.True(t, c.Active())
	assert.Equal(t, "p", c.Target())
}

func TestJumpTo_CorrectionTimeline(t *testing.T) {
	c, sched, drv, host := setup(map[string]int{"p": 40})
	var phases []Phase
	c.OnPhase = func(p Phase) { phases = append(phases, p) }
	require.True(t, c.JumpTo("p"))
	drv.Calls = nil
	phases = nil

	sched.Frame()
	assert.Equal(t, []Phase{PhaseCorrect1}, phases)
	assert.Equal(t, []call{
		{"InvalidateFrom", []any{37}},
		{"ScrollTo", []any{40, virtual.AlignCenter}},
	}, calls(drv))

	// Rows were inserted above the target before the second correction.
	host.index["p"] = 45
	drv.Calls = nil
	sched.Advance(150*time.Millisecond - schedule.DefaultFrameInterval)
	assert.Equal(t, PhaseCorrect2, c.Phase())
	assert.Equal(t, []call{
		{"InvalidateFrom", []any{42}},
		{"ScrollTo", []any{45, virtual.AlignCenter}},
	}, calls(drv))

	drv.Calls = nil
	sched.Advance(350 * time.Millisecond)
	assert.Equal(t, PhaseCorrect3, c.Phase())
	assert.Equal(t, []call{{"ScrollTo", []any{45, virtual.AlignCenter}}}, calls(drv), "no reset on the third correction")

	drv.Calls = nil
	sched.Advance(500 * time.Millisecond)
	assert.Equal(t, PhaseDone, c.Phase())
	assert.Equal(t, 1, host.sweeps)
	assert.Empty(t, drv.Calls)
	assert.False(t, c.Active())

	assert.Equal(t, []Phase{PhaseCorrect1, PhaseCorrect2, PhaseCorrect3, PhaseSweep, PhaseDone}, phases)
	assert.Equal(t, "p", host.highlighted)
	sched.Advance(time.Second)
	assert.Empty(t, host.highlighted, "highlight expires after two seconds")
}

func TestJumpTo_MarginClampsAtZero(t *testing.T) {
	c, sched, drv, _ := setup(map[string]int{"p": 1})
	require.True(t, c.JumpTo("p"))
	drv.Calls = nil
	sched.Frame()
	assert.Equal(t, call{"InvalidateFrom", []any{0}}, calls(drv)[0])
}

func TestJumpTo_TargetEvictedMidSequence(t *testing.T) {
	c, sched, drv, host := setup(map[string]int{"p": 3})
	rec := &jumpRecorder{}
	c.SetRecorder(rec)
	require.True(t, c.JumpTo("p"))
	sched.Frame()

	delete(host.index, "p")
	drv.Calls = nil
	sched.Advance(2 * time.Second)
	assert.Equal(t, PhaseLost, c.Phase())
	assert.Empty(t, drv.Calls)
	assert.Zero(t, host.sweeps)
	assert.Equal(t, jumpRecorder{"ok", "lost"}, *rec)
}

func TestJumpTo_NewJumpCancelsPrevious(t *testing.T) {
	c, sched, drv, host := setup(map[string]int{"a": 5, "b": 20})
	require.True(t, c.JumpTo("a"))
	sched.Advance(100 * time.Millisecond)
	require.True(t, c.JumpTo("b"))
	assert.Equal(t, 2, host.pauses)
	drv.Calls = nil

	sched.Advance(3 * time.Second)
	for _, cl := range calls(drv) {
		if cl.method == "ScrollTo" {
			assert.Equal(t, 20, cl.args[0], "only the newest target is corrected")
		}
	}
	assert.Equal(t, 1, host.sweeps)
	assert.Equal(t, PhaseDone, c.Phase())
	assert.Empty(t, host.highlighted)
}

func TestOlderHighlightExpiryKeepsNewerHighlight(t *testing.T) {
	c, sched, _, host := setup(map[string]int{"a": 5, "b": 20})
	require.True(t, c.JumpTo("a"))
	sched.Advance(time.Second)
	require.True(t, c.JumpTo("b"))
	sched.Advance(1500 * time.Millisecond)
	assert.Equal(t, "b", host.highlighted)
}

func TestCancelAndClose(t *testing.T) {
	c, sched, drv, host := setup(map[string]int{"p": 9})
	require.True(t, c.JumpTo("p"))
	c.Cancel()
	assert.Equal(t, PhaseDone, c.Phase())
	drv.Calls = nil
	sched.Advance(time.Second)
	assert.Empty(t, drv.Calls)
	assert.Zero(t, host.sweeps)
	sched.Advance(time.Second)
	assert.Empty(t, host.highlighted, "cancel keeps the highlight timer")

	require.True(t, c.JumpTo("p"))
	c.Close()
	sched.Advance(5 * time.Second)
	assert.Equal(t, "p", host.highlighted, "close drops the highlight timer too")
	assert.Zero(t, sched.Pending())
}
