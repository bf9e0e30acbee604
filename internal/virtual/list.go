package virtual

import "sort"

// itemPosition caches where a row starts and how tall it is.
type itemPosition struct {
	start  int
	height int
}

// Row is a row overlapping the viewport. Top is relative to the first visible
// line and is negative when the row starts above the viewport.
type Row struct {
	Index  int
	Top    int
	Height int
}

// List is a terminal virtual list. It caches row positions and lays out only
// what changed since the last InvalidateFrom.
type List struct {
	src       Source
	positions []itemPosition
	valid     int // positions[:valid] are up to date
	total     int

	clientHeight int
	offset       int

	onScroll func(ScrollEvent)

	// Invalidations counts InvalidateFrom calls.
	Invalidations int
}

// NewList creates a List pulling sizes from src.
func NewList(src Source) *List {
	return &List{src: src}
}

// OnScroll registers the scroll listener. Every offset change, user or
// programmatic, is reported.
func (l *List) OnScroll(fn func(ScrollEvent)) { l.onScroll = fn }

// SetClientHeight sets the viewport height.
func (l *List) SetClientHeight(h int) {
	if h < 0 {
		h = 0
	}
	l.clientHeight = h
	l.offset = l.clamp(l.offset)
}

// ClientHeight returns the viewport height.
func (l *List) ClientHeight() int { return l.clientHeight }

// Offset returns the first visible content line.
func (l *List) Offset() int { return l.offset }

// ScrollHeight returns the total content height.
func (l *List) ScrollHeight() int {
	l.layout()
	return l.total
}

// InvalidateFrom implements Driver.
func (l *List) InvalidateFrom(index int) {
	l.Invalidations++
	if index < 0 {
		index = 0
	}
	if index < l.valid {
		l.valid = index
	}
}

// layout recomputes positions from the first invalid row.
func (l *List) layout() {
	n := l.src.Len()
	if len(l.positions) > n {
		l.positions = l.positions[:n]
	}
	if l.valid > n {
		l.valid = n
	}
	if l.valid == n && len(l.positions) == n {
		l.total = 0
		if n > 0 {
			last := l.positions[n-1]
			l.total = last.start + last.height
		}
		return
	}
	if cap(l.positions) < n {
		grown := make([]itemPosition, len(l.positions), n+n/4)
		copy(grown, l.positions)
		l.positions = grown
	}
	l.positions = l.positions[:n]

	start := 0
	if l.valid > 0 {
		prev := l.positions[l.valid-1]
		start = prev.start + prev.height
	}
	for i := l.valid; i < n; i++ {
		h := l.src.SizeOf(i)
		if h < 0 {
			h = 0
		}
		l.positions[i] = itemPosition{start: start, height: h}
		start += h
	}
	l.valid = n
	l.total = start
	if n == 0 {
		l.total = 0
	}
}

func (l *List) maxOffset() int {
	m := l.total - l.clientHeight
	if m < 0 {
		return 0
	}
	return m
}

func (l *List) clamp(off int) int {
	l.layout()
	if off > l.maxOffset() {
		off = l.maxOffset()
	}
	if off < 0 {
		off = 0
	}
	return off
}

// ScrollTo implements Driver. It is reported as a programmatic scroll.
func (l *List) ScrollTo(index int, align Alignment) {
	l.layout()
	n := len(l.positions)
	if n == 0 {
		l.setOffset(0, true)
		return
	}
	if index < 0 {
		index = 0
	}
	if index >= n {
		index = n - 1
	}
	p := l.positions[index]

	var off int
	switch align {
	case AlignStart:
		off = p.start
	case AlignEnd:
		off = p.start + p.height - l.clientHeight
	case AlignCenter:
		off = p.start + p.height/2 - l.clientHeight/2
	default:
		switch {
		case p.start < l.offset:
			off = p.start
		case p.start+p.height > l.offset+l.clientHeight:
			off = p.start + p.height - l.clientHeight
		default:
			off = l.offset
		}
	}
	l.setOffset(off, true)
}

// ScrollToEnd scrolls programmatically to the bottom of content.
func (l *List) ScrollToEnd() {
	l.layout()
	l.setOffset(l.maxOffset(), true)
}

// Shift moves the viewport by delta lines as a programmatic scroll. It keeps
// content anchored when rows above the viewport are removed.
func (l *List) Shift(delta int) {
	l.setOffset(l.offset+delta, true)
}

// ScrollBy moves the viewport by delta lines on behalf of the user.
func (l *List) ScrollBy(delta int) {
	l.setOffset(l.offset+delta, false)
}

// SetOffset moves to an absolute offset on behalf of the user.
func (l *List) SetOffset(off int) {
	l.setOffset(off, false)
}

func (l *List) setOffset(off int, programmatic bool) {
	l.offset = l.clamp(off)
	if l.onScroll != nil {
		l.onScroll(ScrollEvent{
			Offset:       l.offset,
			ScrollHeight: l.total,
			ClientHeight: l.clientHeight,
			Programmatic: programmatic,
		})
	}
}

// Visible returns the rows overlapping the viewport, top to bottom.
func (l *List) Visible() []Row {
	l.layout()
	l.offset = l.clamp(l.offset)
	n := len(l.positions)
	if n == 0 || l.clientHeight == 0 {
		return nil
	}
	first := sort.Search(n, func(i int) bool {
		p := l.positions[i]
		return p.start+p.height > l.offset
	})
	end := l.offset + l.clientHeight
	var rows []Row
	for i := first; i < n; i++ {
		p := l.positions[i]
		if p.start >= end {
			break
		}
		if p.height == 0 {
			continue
		}
		rows = append(rows, Row{Index: i, Top: p.start - l.offset, Height: p.height})
	}
	return rows
}

// IndexAt returns the row under viewport line y.
func (l *List) IndexAt(y int) (int, bool) {
	for _, r := range l.Visible() {
		if y >= r.Top && y < r.Top+r.Height {
			return r.Index, true
		}
	}
	return 0, false
}

// Start returns the content line where index begins.
func (l *List) Start(index int) int {
	l.layout()
	if index < 0 || index >= len(l.positions) {
		return 0
	}
	return l.positions[index].start
}

// SizeAt returns the cached size used for index in the current layout.
func (l *List) SizeAt(index int) int {
	l.layout()
	if index < 0 || index >= len(l.positions) {
		return 0
	}
	return l.positions[index].height
}
