// Package watch reloads tree instances whose files are edited outside the program.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/datatree/internal/storage"
)

const rescanInterval = 5 * time.Second

// Target is a tree instance that can re-read its file.
type Target interface {
	Name() string
	File() string
	Reload(ctx context.Context) (bool, error)
}

// Watch starts an fsnotify watcher on the directories holding the targets' files and
// processes change events until ctx is cancelled. Bursts of events for one file are
// collapsed into a single Reload after debounce.
//
// Directories are watched rather than files because saves replace the file by rename.
// A target's file can change at runtime (load file), so the watched set is refreshed after
// every reload pass and on a slow ticker.
func Watch(ctx context.Context, store storage.Provider, targets []Target, debounce time.Duration, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	watched := make(map[string]bool)
	refresh := func() {
		for _, t := range targets {
			abs, err := store.Resolve(t.File())
			if err != nil {
				continue
			}
			dir := filepath.Dir(abs)
			if watched[dir] {
				continue
			}
			if err := w.Add(dir); err != nil {
				logger.Warn("watcher: add dir failed", slog.String("path", dir), slog.String("error", err.Error()))
				continue
			}
			watched[dir] = true
			logger.Debug("watcher: watching dir", slog.String("path", dir))
		}
	}
	refresh()
	logger.Info("watcher: started", slog.Int("dirs", len(watched)))

	// reloadTimer debounces bursts of writes.
	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time
	pending := make(map[string]Target)

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(debounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(debounce)
		}
	}

	rescan := time.NewTicker(rescanInterval)
	defer rescan.Stop()

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-rescan.C:
			refresh()

		case <-reloadCh:
			for name, t := range pending {
				delete(pending, name)
				changed, err := t.Reload(ctx)
				if err != nil {
					logger.Warn("watcher: reload failed", slog.String("tree", name), slog.String("error", err.Error()))
					continue
				}
				if changed {
					logger.Debug("watcher: reloaded", slog.String("tree", name), slog.String("path", t.File()))
				}
			}
			refresh()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Clean(ev.Name)
			for _, t := range targets {
				abs, err := store.Resolve(t.File())
				if err != nil || abs != name {
					continue
				}
				pending[t.Name()] = t
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
