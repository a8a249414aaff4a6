// Package watch monitors the open project's source files on disk and surfaces
// debounced change signals. The watcher never mutates state itself; whoever
// consumes the signal decides whether to reload through the session.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SourceWatcher monitors a parameter/TOA file pair for on-disk changes.
type SourceWatcher struct {
	parPath string
	timPath string
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	changed  chan string // file path, debounced
	debounce time.Duration
}

// New creates a watcher over the given file pair.
func New(parPath, timPath string, logger *slog.Logger) (*SourceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	absPar, err := filepath.Abs(parPath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("resolve parameter path: %w", err)
	}
	absTim, err := filepath.Abs(timPath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("resolve TOA path: %w", err)
	}

	return &SourceWatcher{
		parPath:  absPar,
		timPath:  absTim,
		watcher:  watcher,
		logger:   logger,
		changed:  make(chan string, 1),
		debounce: 500 * time.Millisecond,
	}, nil
}

// Changed delivers one debounced signal per burst of writes, carrying the
// path that changed last.
func (w *SourceWatcher) Changed() <-chan string {
	return w.changed
}

// Start watches the directories containing both files until the context ends.
// Directories are watched rather than the files themselves, so editors that
// replace-by-rename do not silently detach the watch.
func (w *SourceWatcher) Start(ctx context.Context) error {
	dirs := map[string]bool{
		filepath.Dir(w.parPath): true,
		filepath.Dir(w.timPath): true,
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}

	w.logger.Info("watching source files", "par", w.parPath, "tim", w.timPath)
	go w.loop(ctx)
	return nil
}

// Close releases the underlying watcher.
func (w *SourceWatcher) Close() error {
	return w.watcher.Close()
}

func (w *SourceWatcher) loop(ctx context.Context) {
	var timer *time.Timer
	var pending string
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.parPath && event.Name != w.timPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("source file changed", "file", event.Name, "op", event.Op.String())
			pending = event.Name
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case w.changed <- pending:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("source watcher error", "error", err)
		}
	}
}
