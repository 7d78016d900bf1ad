package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"cockpit/internal/logging"
)

const defaultReloadDebounce = 150 * time.Millisecond

// Watcher reloads the config file when it changes on disk and hands the
// freshly parsed Config to onChange. Editors that replace the file via
// rename are handled by watching the parent directory.
type Watcher struct {
	path     string
	logger   logging.Logger
	onChange func(Config)
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

func NewWatcher(path string, logger logging.Logger, onChange func(Config)) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		logger:   logger,
		onChange: onChange,
		debounce: defaultReloadDebounce,
	}, nil
}

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return err
	}
	w.watcher = fsw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run(ctx, fsw, w.stopCh, w.doneCh)
	w.logger.Debug("config_watch_started", logging.F("path", w.path))
	return nil
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh, fsw := w.stopCh, w.doneCh, w.watcher
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := fsw.Close(); err != nil {
		w.logger.Warn("config_watch_close_failed", logging.F("error", err))
	}
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config_watch_error", logging.F("error", err))
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadConfigFromPath(w.path)
	if err != nil {
		w.logger.Warn("config_reload_failed", logging.F("path", w.path), logging.F("error", err))
		return
	}
	w.logger.Info("config_reloaded", logging.F("path", w.path))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
