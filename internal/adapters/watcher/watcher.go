package watcher

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultWindow is the quiet period before a batch of changes is delivered.
const DefaultWindow = 200 * time.Millisecond

const changesBuffer = 16

var _ ports.Watcher = (*Watcher)(nil)

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	excludes  []string
	logger    ports.Logger

	changes   chan []string
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// sendMu keeps emit from sending on a closed changes channel.
	sendMu sync.RWMutex
	closed bool
}

// NewWatcher creates a Watcher delivering batches after window.
// Directories whose base name matches an exclude pattern are not watched.
func NewWatcher(window time.Duration, logger ports.Logger, excludes ...string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create file watcher")
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		excludes:  excludes,
		logger:    logger,
		changes:   make(chan []string, changesBuffer),
		done:      make(chan struct{}),
	}
	w.debouncer = NewDebouncer(window, w.emit)
	return w, nil
}

// Start watches root recursively until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context, root string) error {
	for dir := range w.directories(root) {
		if err := w.fsWatcher.Add(dir); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to watch directory"), "path", dir)
		}
	}

	w.wg.Add(1)
	go w.processEvents(ctx)
	return nil
}

// Changes yields batches of changed absolute paths.
func (w *Watcher) Changes() iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		for batch := range w.changes {
			if !yield(batch) {
				return
			}
		}
	}
}

// Stop stops watching and ends the Changes sequence.
func (w *Watcher) Stop() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		w.wg.Wait()
		w.debouncer.Stop()

		w.sendMu.Lock()
		w.closed = true
		close(w.changes)
		w.sendMu.Unlock()
	})
	return err
}

func (w *Watcher) emit(paths []string) {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.changes <- paths:
	case <-w.done:
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod || w.shouldSkip(filepath.Base(event.Name)) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					for dir := range w.directories(event.Name) {
						_ = w.fsWatcher.Add(dir)
					}
				}
			}
			w.debouncer.Add(event.Name)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("file watcher error", "error", err)
			}
		}
	}
}

// directories yields root and every directory below it that is not excluded.
func (w *Watcher) directories(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr // Unreadable directories are skipped
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && w.shouldSkip(d.Name()) {
				return fs.SkipDir
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Watcher) shouldSkip(name string) bool {
	for _, pattern := range w.excludes {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
