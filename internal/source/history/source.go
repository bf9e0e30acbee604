package history

import (
	"context"
	"errors"
	"log/slog"

	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/source"
)

const kind = "history"

func init() {
	source.Register(kind, func(o source.Options) (source.Source, error) {
		if o.HistoryDB == "" {
			return nil, errors.New("history source needs a database path")
		}
		st, err := Open(o.HistoryDB)
		if err != nil {
			return nil, err
		}
		return &Source{store: st, channel: o.Channel, limit: o.BufferSize, logger: o.Logger}, nil
	})
}

// Source replays stored history and, when it wraps a live source, records
// everything that source delivers.
type Source struct {
	store   *Store
	inner   source.Source
	channel string
	limit   int
	logger  *slog.Logger
}

// Wrap records inner's messages in store under channel. The returned
// source owns store.
func Wrap(inner source.Source, store *Store, channel string, limit int, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if limit <= 0 {
		limit = message.DefaultBufferSize
	}
	return &Source{store: store, inner: inner, channel: channel, limit: limit, logger: logger}
}

func (s *Source) Kind() string {
	if s.inner != nil {
		return s.inner.Kind() + "+" + kind
	}
	return kind
}

// Backfill returns stored messages followed by the inner source's backfill,
// skipping messages already stored. The inner backfill is recorded.
func (s *Source) Backfill(ctx context.Context) ([]message.Message, error) {
	stored, err := s.store.Recent(ctx, s.channel, s.limit)
	if err != nil {
		return nil, err
	}
	if s.inner == nil {
		return stored, nil
	}

	live, err := s.inner.Backfill(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(stored))
	for _, m := range stored {
		if id := message.Normalize(m).ID; id != "" {
			seen[id] = true
		}
	}
	var fresh []message.Message
	for _, m := range live {
		if id := message.Normalize(m).ID; id == "" || !seen[id] {
			fresh = append(fresh, m)
		}
	}
	s.record(ctx, fresh)

	out := append(stored, fresh...)
	if len(out) > s.limit {
		out = out[len(out)-s.limit:]
	}
	return out, nil
}

// Watch forwards the inner source's events and mirrors them into the store.
// Without an inner source the channel closes when ctx is done.
func (s *Source) Watch(ctx context.Context) (<-chan source.Event, error) {
	out := make(chan source.Event, 32)
	if s.inner == nil {
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out, nil
	}

	in, err := s.inner.Watch(ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		defer close(out)
		for e := range in {
			s.apply(ctx, e)
			if !source.Send(ctx, out, e) {
				return
			}
		}
	}()
	return out, nil
}

func (s *Source) apply(ctx context.Context, e source.Event) {
	var err error
	switch e.Type {
	case source.EventMessages:
		s.record(ctx, e.Messages)
		return
	case source.EventDeleted:
		err = s.store.MarkDeleted(ctx, s.channel, e.ID)
	case source.EventClearUser:
		err = s.store.ClearUser(ctx, s.channel, e.UserID)
	case source.EventChannel:
		s.channel = e.Channel
	}
	if err != nil {
		s.logger.Warn("history update failed", "err", err)
	}
}

func (s *Source) record(ctx context.Context, ms []message.Message) {
	if len(ms) == 0 {
		return
	}
	if err := s.store.Append(ctx, s.channel, ms); err != nil {
		s.logger.Warn("history append failed", "err", err)
		return
	}
	if _, err := s.store.Prune(ctx, s.channel, s.limit); err != nil {
		s.logger.Warn("history prune failed", "err", err)
	}
}

// Close closes the inner source and the store.
func (s *Source) Close() error {
	var errs []error
	if s.inner != nil {
		errs = append(errs, s.inner.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}
