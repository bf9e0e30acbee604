package file

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/marcus/chatview/internal/source"
)

// Watch tails the file. The parent directory is watched so the log can be
// created or rotated after the watch starts.
func (s *Source) Watch(ctx context.Context) (<-chan source.Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	name := filepath.Clean(s.path)

	events := make(chan source.Event, 32)

	go func() {
		defer watcher.Close()
		defer close(events)

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != name {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				batch, err := s.readNew()
				if err != nil {
					if !source.Send(ctx, events, source.Event{Type: source.EventError, Err: err}) {
						return
					}
					continue
				}
				for _, e := range batch {
					if !source.Send(ctx, events, e) {
						return
					}
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("file watcher error", "path", s.path, "err", err)
			}
		}
	}()

	return events, nil
}
