package extractor

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
)

// watchDebounceWindow coalesces the rapid write+rename bursts most editors
// and log appenders produce into a single re-extraction pass per session.
const watchDebounceWindow = 500 * time.Millisecond

// debouncer coalesces repeated session-file events within a fixed window,
// the same coalesce-by-path shape as the teacher's file watcher.
type debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]struct{}
	timer   *time.Timer
	out     chan string
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window, pending: make(map[string]struct{}), out: make(chan string, 32)}
}

func (d *debouncer) add(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[sessionID] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	pending := d.pending
	d.pending = make(map[string]struct{})
	d.mu.Unlock()

	for sessionID := range pending {
		select {
		case d.out <- sessionID:
		default:
		}
	}
}

// Watch follows the session directory for new or modified transcripts and
// extracts each as it settles, until ctx is cancelled. A small LRU remembers
// recently re-extracted sessions so a burst of unrelated fsnotify events for
// the same file doesn't trigger redundant re-reads within a run.
func (e *Extractor) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(e.sessionsDir); err != nil {
		return err
	}

	recentlySeen, err := lru.New[string, time.Time](256)
	if err != nil {
		return err
	}

	db := newDebouncer(watchDebounceWindow)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			db.add(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.log.Warn("session watcher error", slog.String("error", err.Error()))

		case path := <-db.out:
			if last, ok := recentlySeen.Get(path); ok && time.Since(last) < watchDebounceWindow {
				continue
			}

			sessionID := sessionIDFromPath(path)
			count, err := e.extractOne(ctx, path, sessionID)
			if err != nil {
				e.log.Warn("watch extraction failed", slog.String("session", sessionID), slog.String("error", err.Error()))
				continue
			}
			recentlySeen.Add(path, time.Now())
			if err := e.store.MarkSessionProcessed(ctx, sessionID, count); err != nil {
				e.log.Warn("failed to mark session processed", slog.String("session", sessionID), slog.String("error", err.Error()))
			}
		}
	}
}

func sessionIDFromPath(path string) string {
	name := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		name = path[idx+1:]
	}
	return strings.TrimSuffix(name, ".jsonl")
}
