package core

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const configReloadDebounce = 250 * time.Millisecond

// WatchConfig reloads path whenever it changes and hands valid configs to apply.
// Invalid edits are logged and skipped. It blocks until ctx is canceled.
func WatchConfig(ctx context.Context, path string, logger *slog.Logger, apply func(Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		debounce *time.Timer
	)
	reload := func() {
		cfg, err := LoadConfig(path)
		if err != nil {
			logger.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		logger.Info("config reloaded", "path", path,
			"message_page_size", cfg.MessagePageSize,
			"max_file_size", cfg.MaxFileSize,
			"typing_idle", cfg.TypingIdle)
		apply(cfg)
	}
	defer func() {
		mu.Lock()
		if debounce != nil {
			debounce.Stop()
		}
		mu.Unlock()
	}()

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			mu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(configReloadDebounce, reload)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Debug("config watcher error", "error", err)
		}
	}
}
