package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cockpit/internal/bootstrap"
	"cockpit/internal/bus"
	"cockpit/internal/client"
	"cockpit/internal/config"
	"cockpit/internal/conn"
	"cockpit/internal/fetch"
	"cockpit/internal/logging"
	"cockpit/internal/panel"
	"cockpit/internal/session"
	"cockpit/internal/state"
	"cockpit/internal/store"
)

// stack is every long-lived component of one cockpit process, wired
// around a single state store and signal bus.
type stack struct {
	cfg        config.Config
	configPath string
	logger     logging.Logger

	kv       store.KV
	store    *state.Store
	bus      *bus.Bus
	api      *client.Client
	fetcher  *fetch.Service
	resolver *session.Resolver
	manager  *conn.Manager
	panels   *panel.Controller
	watcher  *config.Watcher
}

func loadConfig(w commandWiring) (config.Config, string, error) {
	path, err := w.configPath()
	if err != nil {
		return config.Config{}, "", err
	}
	cfg, err := w.loadConfig(path)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, path, nil
}

func newLogger(cfg config.Config, out io.Writer) logging.Logger {
	return logging.NewWithFormat(out, logging.ParseLevel(cfg.LogLevel()), logging.ParseFormat(cfg.LogFormat()))
}

func buildStack(w commandWiring, cfg config.Config, configPath string, logger logging.Logger) (*stack, error) {
	kv, err := w.openStorage(cfg)
	if err != nil {
		// The resolver falls back to an ephemeral session without storage.
		logger.Warn("storage_open_failed", logging.F("backend", cfg.StorageBackend()), logging.F("error", err))
	}

	s := &stack{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		kv:         kv,
		bus:        bus.New(logger.With(logging.F("component", "bus"))),
		store: state.New(state.Options{
			DarkTheme: cfg.DarkTheme(),
			TaskAPI:   cfg.TaskAPISettings(),
		}),
	}
	s.api = w.newAPI(cfg, s.store.TaskAPIConfig)
	s.fetcher = fetch.NewService(s.api, s.store, logger.With(logging.F("component", "fetch")))

	var storage session.Storage
	if kv != nil {
		storage = kv
	}
	s.resolver = session.NewResolver(storage, session.WithLogger(logger.With(logging.F("component", "session"))))

	s.manager, err = conn.NewManager(conn.Options{
		Dialer: w.newDialer(cfg, s.api),
		Store:  s.store,
		Bus:    s.bus,
		Logger: logger.With(logging.F("component", "conn")),
		Retry: conn.RetryPolicy{
			MaxAttempts:    cfg.MaxAttempts(),
			InitialBackoff: cfg.InitialBackoff(),
			MaxBackoff:     cfg.MaxBackoff(),
		},
		BufferSize: cfg.SendBufferSize(),
	})
	if err != nil {
		s.close()
		return nil, err
	}
	s.panels = panel.New(panel.Options{
		Store:      s.store,
		Bus:        s.bus,
		Refresher:  s.fetcher,
		Logger:     logger.With(logging.F("component", "panel")),
		Breakpoint: cfg.PanelBreakpoint(),
	})
	return s, nil
}

// watchConfig pushes theme and task API changes from the config file into
// the store for as long as ctx lives.
func (s *stack) watchConfig(ctx context.Context) {
	if s.configPath == "" {
		return
	}
	watcher, err := config.NewWatcher(s.configPath, s.logger.With(logging.F("component", "config")), s.applyConfig)
	if err != nil {
		s.logger.Warn("config_watch_unavailable", logging.F("error", err))
		return
	}
	if err := watcher.Start(ctx); err != nil {
		s.logger.Warn("config_watch_unavailable", logging.F("error", err))
		return
	}
	s.watcher = watcher
}

func (s *stack) applyConfig(cfg config.Config) {
	s.store.SetDarkTheme(cfg.DarkTheme())
	s.store.SetTaskAPIConfig(cfg.TaskAPISettings())
}

func (s *stack) coordinator(ui bootstrap.UI) (*bootstrap.Coordinator, error) {
	return bootstrap.New(bootstrap.Options{
		UI:           ui,
		Resolver:     s.resolver,
		Connector:    s.manager,
		Fetcher:      s.fetcher,
		Store:        s.store,
		Bus:          s.bus,
		Logger:       s.logger.With(logging.F("component", "bootstrap")),
		ReadyTimeout: s.cfg.ReadyTimeout(),
	})
}

func (s *stack) close() error {
	var errs []error
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.panels != nil {
		s.panels.Dispose()
	}
	if s.manager != nil {
		if err := s.manager.Close(); err != nil && !errors.Is(err, conn.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.store != nil {
		s.store.Dispose()
	}
	if s.kv != nil {
		if err := s.kv.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openUILog() (io.WriteCloser, error) {
	path, err := config.UILogPath()
	if err != nil {
		return nil, err
	}
	dataDir, err := config.DataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
