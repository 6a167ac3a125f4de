// Package watch re-runs a callback when dbt project files change on
// disk, so validation can loop alongside an editor session.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches the event bursts editors produce on save.
const DefaultDebounce = 250 * time.Millisecond

// Watcher observes a set of directories for changes to properties
// files and dbt artifacts.
type Watcher struct {
	paths    []string
	debounce time.Duration
	log      *slog.Logger
}

// New returns a watcher over the given directories. Files are watched
// recursively, skipping hidden directories.
func New(paths []string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{paths: paths, debounce: DefaultDebounce, log: logger}
}

// SetDebounce overrides the event batching window. Mostly for tests.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Run blocks until the context is cancelled, invoking fn after each
// debounced batch of relevant changes. Errors from fn are logged, not
// fatal, so one bad save does not end the session.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	for _, path := range w.paths {
		if err := addRecursive(fw, path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	w.log.Info("watching for changes", "paths", w.paths)

	debounce := time.NewTimer(w.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			// New directories need their own watch.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addRecursive(fw, event.Name)
				}
			}
			w.log.Debug("change detected", "file", event.Name, "op", event.Op.String())
			if pending && !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(w.debounce)
			pending = true

		case <-debounce.C:
			pending = false
			if err := fn(ctx); err != nil {
				w.log.Error("revalidation failed", "error", err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// relevant reports whether an event should trigger revalidation:
// writes, creates, removals and renames of properties files, SQL
// sources or dbt artifacts.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".yml", ".yaml", ".sql", ".json":
		return true
	}
	// Directory events carry no extension; creates are handled above.
	if event.Op&fsnotify.Create != 0 {
		info, err := os.Stat(event.Name)
		return err == nil && info.IsDir()
	}
	return false
}

func addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if name := info.Name(); strings.HasPrefix(name, ".") && path != dir {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
