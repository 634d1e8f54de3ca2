package alephfs

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollInterval is the reconciliation sweep period. fsnotify events are the
// fast path; the poll is what makes delivery lossy-but-always-followed-by-
// a-scan instead of lossy-full-stop, per §4.1's contract that a watcher may
// coalesce or drop individual events but must never leave a directory's
// true state unobserved for long.
const pollInterval = 200 * time.Millisecond

// WatchEvent is a single observed change under a watched directory. Op
// mirrors fsnotify's bitmask so callers that only care about, say, Create
// can filter with Op&fsnotify.Create.
type WatchEvent struct {
	Path string
	Op   fsnotify.Op
}

// Watch watches dir (non-recursively) and sends a WatchEvent for every
// fsnotify-observed change plus a synthetic poll-driven WatchEvent{Op: 0}
// every pollInterval so consumers that missed an fsnotify event (coalesced,
// or emitted while the watcher was briefly unavailable) still get a chance
// to reconcile by re-listing the directory themselves. The returned channel
// is closed when ctx is canceled or the watch fails unrecoverably.
func Watch(ctx context.Context, dir string, logger *slog.Logger) (<-chan WatchEvent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan WatchEvent, 64)

	go func() {
		defer w.Close()
		defer close(out)

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				select {
				case out <- WatchEvent{Path: ev.Name, Op: ev.Op}:
				case <-ctx.Done():
					return
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("alephfs: watch error, relying on poll reconciliation", "dir", dir, "error", werr)
			case <-ticker.C:
				select {
				case out <- WatchEvent{Path: dir, Op: 0}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
