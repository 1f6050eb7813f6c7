package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watch reloads the configuration whenever config.json or .env changes and
// passes the result to fn. It returns once the watcher is installed; the
// watch ends when ctx is cancelled.
func (s *Store) Watch(ctx context.Context, fn func(Config)) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: Save replaces config.json by rename.
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	go s.watchLoop(ctx, w, fn)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher, fn func(Config)) {
	defer w.Close()

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		cfg, err := s.Load()
		if err != nil {
			slog.Warn("reload config", "path", s.Path(), "error", err)
			return
		}
		slog.Info("config reloaded", "path", s.Path())
		fn(cfg)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !s.relevant(event) {
				continue
			}
			mu.Lock()
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, reload)
			} else {
				timer.Reset(watchDebounce)
			}
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (s *Store) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	switch filepath.Base(event.Name) {
	case configFileName, envFileName:
		return true
	}
	return false
}
