package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"cockpit/internal/app"
	"cockpit/internal/logging"
)

func newUICmd(w commandWiring) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Run the terminal UI (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(w)
			if err != nil {
				return err
			}
			// The terminal belongs to the UI, so logs go to a file.
			logOut, err := w.uiLogWriter()
			if err != nil {
				logOut = discardCloser{}
			}
			defer logOut.Close()
			logger := newLogger(cfg, logOut).With(logging.F("version", w.version))

			s, err := buildStack(w, cfg, path, logger)
			if err != nil {
				return err
			}
			defer s.close()
			return w.runUI(s)
		},
	}
}

func runTerminalUI(s *stack) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.watchConfig(ctx)

	ui := app.NewUI(app.Options{
		Store:     s.store,
		Bus:       s.bus,
		Refresher: s.fetcher,
		Logger:    s.logger.With(logging.F("component", "ui")),
	})
	defer ui.Dispose()

	coord, err := s.coordinator(ui)
	if err != nil {
		return err
	}
	defer coord.Dispose()

	go func() {
		session, err := coord.Run(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Error("ui_bootstrap_failed", logging.F("error", err))
			}
			return
		}
		if handle := coord.Handle(); handle != nil {
			ui.Attach(handle)
		}
		s.logger.Info("ui_session_ready", logging.F("session_id", session.ID))
	}()
	return ui.Run()
}

type discardCloser struct{}

func (discardCloser) Write(p []byte) (int, error) { return io.Discard.Write(p) }
func (discardCloser) Close() error                { return nil }
