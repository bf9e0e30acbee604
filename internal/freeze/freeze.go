// Package freeze holds the paused-state copy of the message list and its row
// heights so the content under a paused user does not shift while new
// messages keep arriving.
package freeze

import (
	"maps"
	"slices"

	"github.com/marcus/chatview/internal/message"
)

// Snapshot is the list and height map captured when the pause began.
type Snapshot struct {
	Entries []message.Entry
	Heights map[int]int
}

// Len returns the number of frozen rows.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// Buffer owns at most one Snapshot per pause episode.
type Buffer struct {
	snap *Snapshot
}

// New creates an empty Buffer.
func New() *Buffer { return &Buffer{} }

// OnPauseEnter captures entries and heights. While a snapshot exists it is
// returned unchanged.
func (b *Buffer) OnPauseEnter(entries []message.Entry, heights map[int]int) *Snapshot {
	if b.snap != nil {
		return b.snap
	}
	b.snap = &Snapshot{
		Entries: slices.Clone(entries),
		Heights: maps.Clone(heights),
	}
	if b.snap.Heights == nil {
		b.snap.Heights = map[int]int{}
	}
	return b.snap
}

// OnPauseExit discards the snapshot.
func (b *Buffer) OnPauseExit() {
	b.snap = nil
}

// Frozen reports whether a snapshot is held.
func (b *Buffer) Frozen() bool { return b.snap != nil }

// Snapshot returns the current snapshot, or nil.
func (b *Buffer) Snapshot() *Snapshot { return b.snap }

// Resolve returns the frozen height for a snapshot index.
func (b *Buffer) Resolve(index int) (int, bool) {
	if b.snap == nil {
		return 0, false
	}
	h, ok := b.snap.Heights[index]
	if !ok || h <= 0 {
		return 0, false
	}
	return h, true
}

// ResolveEntry returns the frozen height for e, which now sits at index in
// the live list after shift rows were evicted above it. The snapshot is only
// trusted when the row there is still the same message.
func (b *Buffer) ResolveEntry(index, shift int, e message.Entry) (int, bool) {
	if b.snap == nil {
		return 0, false
	}
	i := index + shift
	if i < 0 || i >= len(b.snap.Entries) {
		return 0, false
	}
	if f := b.snap.Entries[i]; f.ID != e.ID || (e.ID == "" && f.Text != e.Text) {
		return 0, false
	}
	return b.Resolve(i)
}
