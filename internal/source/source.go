package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/marcus/chatview/internal/message"
)

// ErrUnknownKind is returned by Open for a kind nobody registered.
var ErrUnknownKind = errors.New("unknown source kind")

// Source delivers chat messages for one channel.
type Source interface {
	Kind() string
	// Backfill returns the messages already available, oldest first.
	Backfill(ctx context.Context) ([]message.Message, error)
	// Watch streams live events until ctx is done. The channel is closed
	// when the source stops.
	Watch(ctx context.Context) (<-chan Event, error)
	Close() error
}

// EventType identifies the kind of source event.
type EventType string

const (
	EventMessages  EventType = "messages"
	EventDeleted   EventType = "deleted"
	EventClearUser EventType = "clear_user"
	EventChannel   EventType = "channel"
	EventError     EventType = "error"
)

// Event is a change delivered by Watch.
type Event struct {
	Type     EventType
	Messages []message.Message
	// ID is the deleted message id for EventDeleted.
	ID string
	// UserID is the cleared user for EventClearUser.
	UserID string
	// Channel is the new channel for EventChannel.
	Channel string
	Err     error
}

// Options configure a source. Each kind reads the fields it needs.
type Options struct {
	Path       string
	Channel    string
	HistoryDB  string
	BufferSize int
	Rate       time.Duration
	Seed       uint64
	Logger     *slog.Logger
}

// Factory builds a source from options.
type Factory func(Options) (Source, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a source kind available to Open. It is meant to be called
// from init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds returns the registered kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Open creates a source of the given kind.
func Open(kind string, opts Options) (Source, error) {
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = message.DefaultBufferSize
	}
	s, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", kind, err)
	}
	return s, nil
}

// Send delivers e unless ctx is done first. It reports whether e was sent.
func Send(ctx context.Context, ch chan<- Event, e Event) bool {
	select {
	case ch <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
