// Package file reads chat lines from a file and tails it for new ones.
package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/source"
)

const kind = "file"

func init() {
	source.Register(kind, func(o source.Options) (source.Source, error) {
		return New(o.Path, o.BufferSize, o.Logger)
	})
}

// Source tails a line-oriented chat log.
type Source struct {
	path   string
	limit  int
	logger *slog.Logger

	mu      sync.Mutex
	offset  int64
	partial []byte
}

// New creates a file source. Backfill keeps at most limit messages.
func New(path string, limit int, logger *slog.Logger) (*Source, error) {
	if path == "" {
		return nil, errors.New("file source needs a path")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{path: path, limit: limit, logger: logger}, nil
}

func (s *Source) Kind() string { return kind }

// Backfill reads every complete line currently in the file. Moderation lines
// are applied in order, so deleted messages are dropped from the result.
func (s *Source) Backfill(ctx context.Context) ([]message.Message, error) {
	events, err := s.readNew()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return replay(events, s.limit), ctx.Err()
}

// replay applies events to an empty list and returns the last limit
// messages.
func replay(events []source.Event, limit int) []message.Message {
	var out []message.Message
	for _, e := range events {
		switch e.Type {
		case source.EventMessages:
			out = append(out, e.Messages...)
		case source.EventDeleted:
			out = dropWhere(out, func(en message.Entry) bool { return en.ID == e.ID })
		case source.EventClearUser:
			out = dropWhere(out, func(en message.Entry) bool { return en.UserID == e.UserID })
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func dropWhere(ms []message.Message, match func(message.Entry) bool) []message.Message {
	kept := ms[:0]
	for _, m := range ms {
		if !match(message.Normalize(m)) {
			kept = append(kept, m)
		}
	}
	return kept
}

// readNew decodes the complete lines appended since the last read.
func (s *Source) readNew() ([]source.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}
	if info.Size() < s.offset {
		// truncated or rotated
		s.logger.Debug("chat log truncated", "path", s.path)
		s.offset = 0
		s.partial = nil
	}
	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", s.path, err)
	}

	var events []source.Event
	r := bufio.NewReader(f)
	for {
		chunk, err := r.ReadBytes('\n')
		s.offset += int64(len(chunk))
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.partial = append(s.partial, chunk...)
				break
			}
			return events, fmt.Errorf("read %s: %w", s.path, err)
		}
		line := string(append(s.partial, chunk...))
		s.partial = nil

		e, ok, derr := source.DecodeLine(line)
		if derr != nil {
			s.logger.Debug("skipping line", "path", s.path, "err", derr)
			continue
		}
		if ok {
			events = append(events, e)
		}
	}
	return source.Merge(events), nil
}

func (s *Source) Close() error { return nil }
