package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads config.toml whenever it changes on disk and passes the new
// Config to onChange. The parent directory is watched so editors that replace
// the file atomically are still observed. Watch blocks until ctx is done.
func (c *Configer) Watch(ctx context.Context, log *slog.Logger, onChange func(*Config)) error {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(c.targetPath)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(c.targetPath), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(c.targetPath) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			cfg, err := c.LoadConfig()
			if err != nil {
				log.Warn("reloading config", "path", c.targetPath, "error", err)
				continue
			}
			log.Debug("config reloaded", "path", c.targetPath)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher", "error", err)
		}
	}
}
