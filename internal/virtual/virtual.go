// Package virtual holds the virtualization capability the list engine drives
// and a terminal implementation of it.
//
// The engine only needs two commands (InvalidateFrom and ScrollTo) and pulls
// sizes through Source. Any implementation honouring that contract can back
// the engine.
package virtual

// Alignment controls where ScrollTo places the target row.
type Alignment int

const (
	// AlignAuto scrolls the minimum distance needed to show the row.
	AlignAuto Alignment = iota
	AlignStart
	AlignCenter
	AlignEnd
)

// String returns a readable alignment name.
func (a Alignment) String() string {
	switch a {
	case AlignStart:
		return "start"
	case AlignCenter:
		return "center"
	case AlignEnd:
		return "end"
	default:
		return "auto"
	}
}

// Driver is the push side of the virtualization primitive.
type Driver interface {
	// InvalidateFrom discards cached sizes and positions from index onward so
	// they are pulled again on the next layout.
	InvalidateFrom(index int)
	// ScrollTo moves the viewport to show index with the given alignment.
	ScrollTo(index int, align Alignment)
}

// Source is the pull side: the row count and the size of each row.
type Source interface {
	Len() int
	SizeOf(index int) int
}

// ScrollEvent describes the viewport after a scroll.
type ScrollEvent struct {
	Offset       int
	ScrollHeight int
	ClientHeight int
	Programmatic bool
}

// DistanceToBottom returns how far the viewport is from the end of content.
func (e ScrollEvent) DistanceToBottom() int {
	d := e.ScrollHeight - e.ClientHeight - e.Offset
	if d < 0 {
		return 0
	}
	return d
}
