package message

import "slices"

// DefaultBufferSize is the rolling buffer cap used when none is configured.
const DefaultBufferSize = 500

// Buffer is the capped, append-only message history the list renders from.
// The oldest messages are evicted once the cap is reached.
type Buffer struct {
	cap  int
	msgs []Message
}

// NewBuffer creates a buffer holding at most capacity messages.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{cap: capacity}
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int { return b.cap }

// Len returns the number of buffered messages.
func (b *Buffer) Len() int { return len(b.msgs) }

// Append appends messages, returning how many old messages were evicted.
func (b *Buffer) Append(ms ...Message) int {
	for _, m := range ms {
		if m != nil {
			b.msgs = append(b.msgs, m)
		}
	}
	over := len(b.msgs) - b.cap
	if over <= 0 {
		return 0
	}
	// Copy so slices handed out by Messages never alias the live array.
	b.msgs = slices.Clone(b.msgs[over:])
	return over
}

// Messages returns a copy of the buffered messages, oldest first.
func (b *Buffer) Messages() []Message {
	return slices.Clone(b.msgs)
}

// Entries returns the buffered messages normalized.
func (b *Buffer) Entries() []Entry {
	return NormalizeAll(b.msgs)
}

// Reset drops all messages.
func (b *Buffer) Reset() {
	b.msgs = nil
}
