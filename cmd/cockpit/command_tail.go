package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"

	"cockpit/internal/bus"
	"cockpit/internal/conn"
	"cockpit/internal/logging"
)

// headlessUI stands in for the terminal UI when nothing is drawn. It is
// ready from the start, so bootstrap never waits on it.
type headlessUI struct{}

func (headlessUI) InitializeUI() error { return nil }
func (headlessUI) Initialized() bool   { return true }

type tailOptions struct {
	count int
	send  string
}

func newTailCmd(w commandWiring) *cobra.Command {
	opts := tailOptions{}
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Connect without the UI and print inbound messages as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(w)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, w.stderr)
			s, err := buildStack(w, cfg, path, logger)
			if err != nil {
				return err
			}
			defer s.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runTail(ctx, s, opts, w.stdout)
		},
	}
	cmd.Flags().IntVar(&opts.count, "count", 0, "exit after this many messages (0 = until interrupted)")
	cmd.Flags().StringVar(&opts.send, "send", "", "send this chat message once connected")
	return cmd
}

func runTail(ctx context.Context, s *stack, opts tailOptions, out io.Writer) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		mu       sync.Mutex
		received int
	)
	unsubMessages := s.bus.Subscribe(bus.TopicMessageReceived, func(sig bus.Signal) {
		mu.Lock()
		defer mu.Unlock()
		if opts.count > 0 && received >= opts.count {
			return
		}
		fmt.Fprintln(out, string(compactJSON(sig.Payload)))
		received++
		if opts.count > 0 && received >= opts.count {
			cancel(nil)
		}
	})
	defer unsubMessages()
	unsubLost := s.bus.Subscribe(bus.TopicConnectionLost, func(sig bus.Signal) {
		cancel(sig.Err)
	})
	defer unsubLost()

	coord, err := s.coordinator(headlessUI{})
	if err != nil {
		return err
	}
	defer coord.Dispose()

	session, err := coord.Run(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("tail_connected", logging.F("session_id", session.ID))
	if opts.send != "" {
		if handle := coord.Handle(); handle != nil {
			if err := handle.Send(opts.send); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}

	<-ctx.Done()
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		if errors.Is(cause, conn.ErrConnectionLost) {
			return cause
		}
		return fmt.Errorf("%w: %w", conn.ErrConnectionLost, cause)
	}
	return nil
}

func compactJSON(payload json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return payload
	}
	return buf.Bytes()
}
