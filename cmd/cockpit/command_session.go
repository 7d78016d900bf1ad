package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cockpit/internal/logging"
)

func newSessionCmd(w commandWiring) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Print the persisted session id, creating it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sessionStack(w)
			if err != nil {
				return err
			}
			defer s.close()
			session := s.resolver.Resolve(cmd.Context())
			if session.Ephemeral {
				fmt.Fprintf(w.stderr, "warning: storage unavailable, session %s will not persist\n", session.ID)
			}
			fmt.Fprintln(w.stdout, session.ID)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the persisted session id so the next run starts a new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sessionStack(w)
			if err != nil {
				return err
			}
			defer s.close()
			if err := s.resolver.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(w.stdout, "session reset")
			return nil
		},
	})
	return cmd
}

func sessionStack(w commandWiring) (*stack, error) {
	cfg, _, err := loadConfig(w)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, w.stderr).With(logging.F("command", "session"))
	return buildStack(w, cfg, "", logger)
}
