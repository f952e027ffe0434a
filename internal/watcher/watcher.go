// Package watcher observes the inbox directory and emits files once they
// have finished being written. A fixed-interval poll is the stability
// authority; fsnotify events only register files into the pending set a
// little earlier than the next tick would.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Document extensions considered for processing (lowercase, with dot).
var defaultExtensions = map[string]struct{}{
	".pdf":  {},
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".tif":  {},
	".tiff": {},
}

// Entry is the subset of directory listing data the watcher needs.
type Entry struct {
	Name string
	Size int64
}

// Lister returns the files currently present in a directory. Injectable
// so tests can drive the watcher without a real filesystem.
type Lister func(dir string) ([]Entry, error)

// Config controls watcher behavior.
type Config struct {
	Inbox           string
	Stability       time.Duration
	PollInterval    time.Duration
	MinFileSize     int64
	ExcludePatterns []string

	// UseNotify enables fsnotify hints. Polling works without it.
	UseNotify bool

	// Test seams; nil selects the real implementations.
	List Lister
	Now  func() time.Time
}

// pendingFile tracks one file under stability observation.
type pendingFile struct {
	size       int64
	lastChange time.Time
}

// Watcher owns the pending-file set. Once a path is emitted it stays in
// the dispatched set until it disappears from the inbox listing, so a
// file the pipeline has not moved out yet is never handed over a second
// time. After a restart everything still in the inbox is re-evaluated
// from scratch.
type Watcher struct {
	cfg Config

	mu      sync.Mutex
	pending map[string]*pendingFile

	// dispatched maps emitted paths to the size they had at dispatch.
	dispatched map[string]int64
}

// New creates a watcher. Defaults are applied for the injectable seams.
func New(cfg Config) *Watcher {
	if cfg.List == nil {
		cfg.List = listDir
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Watcher{
		cfg:        cfg,
		pending:    make(map[string]*pendingFile),
		dispatched: make(map[string]int64),
	}
}

// Run polls the inbox until ctx is canceled, emitting stabilized file
// paths on the returned channel. The channel closes when the watcher
// stops dispatching.
func (w *Watcher) Run(ctx context.Context) <-chan string {
	out := make(chan string, 64)

	var notifier *fsnotify.Watcher
	if w.cfg.UseNotify {
		var err error
		notifier, err = fsnotify.NewWatcher()
		if err == nil {
			err = notifier.Add(w.cfg.Inbox)
		}
		if err != nil {
			slog.Warn("fsnotify unavailable, relying on polling only", "error", err)
			notifier = nil
		}
	}

	go func() {
		defer close(out)
		if notifier != nil {
			defer func() {
				if err := notifier.Close(); err != nil {
					slog.Warn("Failed to close fsnotify watcher", "error", err)
				}
			}()
		}

		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()

		slog.Info("Watching inbox",
			"inbox", w.cfg.Inbox,
			"stability", w.cfg.Stability,
			"poll_interval", w.cfg.PollInterval)

		// Stable paths the pipeline was too busy to accept; retried each
		// tick so the poll loop itself never blocks on pipeline work.
		var backlog []string

		for {
			var events chan fsnotify.Event
			var errs chan error
			if notifier != nil {
				events = notifier.Events
				errs = notifier.Errors
			}

			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					w.register(ev.Name)
				}
			case err := <-errs:
				slog.Warn("fsnotify error", "error", err)
			case <-ticker.C:
				backlog = append(backlog, w.Poll()...)
			drain:
				for len(backlog) > 0 {
					select {
					case out <- backlog[0]:
						backlog = backlog[1:]
					default:
						break drain
					}
				}
			}
		}
	}()

	return out
}

// Poll runs one poll cycle and returns the paths that became stable.
func (w *Watcher) Poll() []string {
	now := w.cfg.Now()

	entries, err := w.cfg.List(w.cfg.Inbox)
	if err != nil {
		// Transient listing failures are retried on the next tick and
		// never stop the watcher.
		slog.Warn("Failed to list inbox, will retry", "inbox", w.cfg.Inbox, "error", err)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	present := make(map[string]struct{}, len(entries))
	var stable []string

	for _, e := range entries {
		if w.ignored(e.Name, e.Size) {
			continue
		}
		path := filepath.Join(w.cfg.Inbox, e.Name)
		present[path] = struct{}{}

		if size, ok := w.dispatched[path]; ok {
			if size == e.Size {
				// Already handed to the pipeline; waiting for it to be
				// moved out of the inbox.
				continue
			}
			// Rewritten in place since dispatch: observe it afresh.
			delete(w.dispatched, path)
		}

		p, seen := w.pending[path]
		switch {
		case !seen:
			w.pending[path] = &pendingFile{size: e.Size, lastChange: now}
			slog.Debug("File pending stability", "path", path, "size", e.Size)
		case p.size != e.Size:
			// Still being written: restart the stability clock.
			p.size = e.Size
			p.lastChange = now
		case now.Sub(p.lastChange) >= w.cfg.Stability:
			delete(w.pending, path)
			w.dispatched[path] = e.Size
			stable = append(stable, path)
			slog.Info("File stable, dispatching", "path", path)
		}
	}

	// Files that vanished before stabilizing were transient (editor temp
	// files, aborted transfers); drop them silently.
	for path := range w.pending {
		if _, ok := present[path]; !ok {
			delete(w.pending, path)
			slog.Debug("Pending file vanished", "path", path)
		}
	}

	// Dispatched files that left the inbox are done; a later file with
	// the same name is a new document.
	for path := range w.dispatched {
		if _, ok := present[path]; !ok {
			delete(w.dispatched, path)
		}
	}

	return stable
}

// PendingCount reports how many files are under observation.
func (w *Watcher) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// register adds a file to the pending set from an fsnotify hint, so its
// stability clock starts before the next poll tick.
func (w *Watcher) register(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if w.ignored(filepath.Base(path), info.Size()) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if size, ok := w.dispatched[path]; ok && size == info.Size() {
		return
	}
	if _, seen := w.pending[path]; !seen {
		w.pending[path] = &pendingFile{size: info.Size(), lastChange: w.cfg.Now()}
		slog.Debug("File pending stability (event)", "path", path)
	}
}

// ignored applies the exclusion rules: hidden files, partial-transfer
// markers, unsupported extensions, and files below the minimum size never
// enter the pending set.
func (w *Watcher) ignored(name string, size int64) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, pattern := range w.cfg.ExcludePatterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	if _, ok := defaultExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
		return true
	}
	return size < w.cfg.MinFileSize
}

// listDir is the production Lister.
func listDir(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// The file may have vanished between ReadDir and Info.
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), Size: info.Size()})
	}
	return entries, nil
}
