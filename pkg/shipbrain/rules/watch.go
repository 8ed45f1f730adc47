package rules

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a rule file into a Manager whenever the file changes.
// A file that fails to load leaves the previous rules in place.
type Watcher struct {
	path     string
	manager  *Manager
	logger   *slog.Logger
	debounce time.Duration
	onReload func(count int, err error)
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the file must be quiet before reloading.
// Default: 250ms.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithReloadHook registers a callback run after every reload attempt.
func WithReloadHook(fn func(count int, err error)) WatchOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// NewWatcher creates a watcher for the rule file at path.
func NewWatcher(path string, m *Manager, opts ...WatchOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		manager:  m,
		debounce: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = m.logger
	}
	return w
}

// Reload loads the file and replaces the manager's file rules.
func (w *Watcher) Reload() (int, error) {
	rules, err := LoadFile(w.path)
	if err == nil {
		err = w.manager.Replace(OriginFile, rules)
	}
	if err != nil {
		w.logger.Warn("rules reload failed", "path", w.path, "error", err)
	} else {
		w.logger.Info("rules reloaded", "path", w.path, "count", len(rules))
	}
	if w.onReload != nil {
		w.onReload(len(rules), err)
	}
	return len(rules), err
}

// Run watches the file until ctx is done. It watches the parent directory
// so editors that save by rename are picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0:
				settle = time.After(w.debounce)
			case ev.Op&fsnotify.Remove != 0:
				w.logger.Warn("rules file removed, keeping loaded rules", "path", w.path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("rules watcher error", "error", err)

		case <-settle:
			settle = nil
			_, _ = w.Reload()
		}
	}
}
