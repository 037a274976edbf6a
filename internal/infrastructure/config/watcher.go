package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the policy file on change and swaps the snapshot. A
// reload that fails validation keeps the previous snapshot; the policy
// never degrades because someone saved a broken file.
type Watcher struct {
	path   string
	loader *Loader
	store  *Store
	logger *slog.Logger
}

// NewWatcher creates a watcher for the policy file at path.
func NewWatcher(path string, loader *Loader, store *Store, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, loader: loader, store: store, logger: logger}
}

// Run watches until ctx is done. The containing directory is watched,
// not the file itself, so editors that replace the file by rename keep
// triggering reloads.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting policy watcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
	}()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.reload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "policy watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := w.loader.Load(w.path)
	if err != nil {
		w.logger.ErrorContext(ctx, "policy reload failed, keeping previous snapshot",
			"path", w.path,
			"error", err)
		return
	}
	w.store.Swap(cfg.Ruleset)
	w.logger.InfoContext(ctx, "policy reloaded",
		"path", w.path,
		"mode", cfg.Ruleset.Mode.String())
}
