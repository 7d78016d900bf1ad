package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd(w commandWiring) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(w)
			if err != nil {
				return err
			}
			api := w.newAPI(cfg, nil)
			resp, err := api.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("backend %s: %w", api.BaseURL(), err)
			}
			version := resp.Version
			if version == "" {
				version = "unknown"
			}
			fmt.Fprintf(w.stdout, "ok=%t version=%s backend=%s\n", resp.OK, version, api.BaseURL())
			return nil
		},
	}
}
