package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of write events one save can produce
// (editors write in chunks, atomic saves rename over the file).
const reloadDebounce = 100 * time.Millisecond

// Watch monitors path for changes and calls onChange with the newly loaded
// Config after the file is written. It runs until ctx is cancelled.
//
// Only a subset of settings is meaningful to reload at runtime (cache TTL,
// push pruning policy); callers decide what to apply. If a reload fails
// (e.g., invalid YAML), the error is logged and the previous config remains
// active: Watch does not call onChange, and keeps watching.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only react to write or create events. Editors often write via
			// rename (atomic save), so also catch fsnotify.Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Restart the debounce window rather than reloading per event.
			pending = time.After(reloadDebounce)

		case <-pending:
			pending = nil

			// Re-add the file before reading it in case an atomic save
			// replaced the inode; done even when the reload below fails so
			// a later corrected write is still seen.
			_ = watcher.Add(path)

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}

			slog.Info("config: reloaded", "path", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
