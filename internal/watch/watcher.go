// Package watch regenerates enumerators when watched sources change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"variantgen/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Handler is invoked once per settled target: a Go package directory or a
// single .rs file.
type Handler func(ctx context.Context, target string) error

// Options configures a Watcher.
type Options struct {
	// Debounce is how long a target must be quiet before Handler runs.
	Debounce time.Duration
	// IgnorePatterns are directory base names that are never watched.
	IgnorePatterns []string
	// OutputSuffix identifies generated files, whose changes are ignored.
	OutputSuffix string
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Regenerations int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
	LastTarget    string
}

// Watcher watches directory trees for .go and .rs changes.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	handler     Handler
	opts        Options
	roots       []string
	debounceMap map[string]time.Time // target -> last event
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// New creates a Watcher over roots. Nothing is watched until Start.
func New(roots []string, opts Options, handler Handler) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	return &Watcher{
		watcher:     watcher,
		handler:     handler,
		opts:        opts,
		roots:       roots,
		debounceMap: make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start adds every directory under the roots and begins watching in a
// goroutine. It returns once the watches are in place.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			w.watcher.Close()
			return err
		}
	}

	go w.run(ctx)
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		logging.WatchDebug("Watcher: watching directory: %s", path)
		return nil
	})
}

func (w *Watcher) ignored(base string) bool {
	if strings.HasPrefix(base, ".") && base != "." {
		return true
	}
	for _, pattern := range w.opts.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	logging.Watch("Watcher: stopped")
}

// Stats returns a snapshot of the watcher statistics.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// WatchedDirs returns the watched directories, sorted.
func (w *Watcher) WatchedDirs() []string {
	dirs := w.watcher.WatchList()
	sort.Strings(dirs)
	return dirs
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer func() {
		if err := w.watcher.Close(); err != nil {
			logging.WatchError("Watcher: error closing watcher: %v", err)
		}
	}()

	tick := w.opts.Debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("Watcher: context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebounced(ctx)
		}
	}
}

// targetFor maps a changed file to the target to regenerate, or "".
func (w *Watcher) targetFor(path string) string {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") {
		return ""
	}
	switch filepath.Ext(base) {
	case ".go":
		if strings.HasSuffix(base, "_test.go") || strings.HasSuffix(base, w.opts.OutputSuffix+".go") {
			return ""
		}
		return filepath.Dir(path)
	case ".rs":
		if strings.HasSuffix(base, w.opts.OutputSuffix+".rs") {
			return ""
		}
		return path
	}
	return ""
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.ignored(info.Name()) {
			if err := w.addTree(event.Name); err != nil {
				logging.WatchError("Watcher: failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}

	target := w.targetFor(event.Name)
	if target == "" {
		return
	}
	if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 && filepath.Ext(target) == ".rs" {
		// The file is gone; there is nothing left to regenerate from.
		return
	}

	logging.WatchDebug("Watcher: %s event for %s", event.Op, event.Name)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[target] = time.Now()
	w.mu.Unlock()
}

// processDebounced runs the handler for targets quiet for the debounce window.
func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for target, at := range w.debounceMap {
		if now.Sub(at) >= w.opts.Debounce {
			settled = append(settled, target)
			delete(w.debounceMap, target)
		}
	}
	w.mu.Unlock()

	sort.Strings(settled)
	for _, target := range settled {
		logging.Watch("Watcher: regenerating %s", target)
		err := w.handler(ctx, target)

		w.mu.Lock()
		w.stats.Regenerations++
		w.stats.LastTarget = target
		if err != nil {
			w.stats.Errors++
		}
		w.mu.Unlock()

		if err != nil {
			logging.WatchError("Watcher: %s: %v", target, err)
		}
	}
}
