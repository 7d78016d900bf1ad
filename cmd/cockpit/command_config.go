package main

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"cockpit/internal/config"
	"cockpit/internal/types"
)

const (
	configFormatJSON = "json"
	configFormatTOML = "toml"
)

// configOutput is the effective configuration after defaults and
// normalization, not the raw file contents.
type configOutput struct {
	ConfigPath string               `json:"config_path,omitempty" toml:"config_path,omitempty"`
	Backend    effectiveBackend     `json:"backend" toml:"backend"`
	Reconnect  effectiveReconnect   `json:"reconnect" toml:"reconnect"`
	TaskAPI    types.TaskAPIConfig  `json:"task_api" toml:"task_api"`
	UI         effectiveUI          `json:"ui" toml:"ui"`
	Storage    config.StorageConfig `json:"storage" toml:"storage"`
	Logging    config.LoggingConfig `json:"logging" toml:"logging"`
}

type effectiveBackend struct {
	Address      string `json:"address" toml:"address"`
	Transport    string `json:"transport" toml:"transport"`
	BaseURL      string `json:"base_url" toml:"base_url"`
	WebsocketURL string `json:"websocket_url" toml:"websocket_url"`
}

type effectiveReconnect struct {
	MaxAttempts      int   `json:"max_attempts" toml:"max_attempts"`
	InitialBackoffMS int64 `json:"initial_backoff_ms" toml:"initial_backoff_ms"`
	MaxBackoffMS     int64 `json:"max_backoff_ms" toml:"max_backoff_ms"`
	BufferSize       int   `json:"buffer_size" toml:"buffer_size"`
}

type effectiveUI struct {
	DarkTheme       bool  `json:"dark_theme" toml:"dark_theme"`
	PanelBreakpoint int   `json:"panel_breakpoint" toml:"panel_breakpoint"`
	ReadyTimeoutMS  int64 `json:"ready_timeout_ms" toml:"ready_timeout_ms"`
}

func newConfigCmd(w commandWiring) *cobra.Command {
	var (
		defaults bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (or the defaults)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			resolvedFormat, err := resolveConfigFormat(format)
			if err != nil {
				return err
			}
			cfg := config.DefaultConfig()
			path := ""
			if !defaults {
				cfg, path, err = loadConfig(w)
				if err != nil {
					return err
				}
			}
			return writeConfigOutput(w.stdout, resolvedFormat, buildConfigOutput(cfg, path))
		},
	}
	cmd.Flags().BoolVar(&defaults, "default", false, "print default config values")
	cmd.Flags().StringVar(&format, "format", configFormatTOML, "output format: toml|json")
	return cmd
}

func buildConfigOutput(cfg config.Config, path string) configOutput {
	return configOutput{
		ConfigPath: path,
		Backend: effectiveBackend{
			Address:      cfg.BackendAddress(),
			Transport:    cfg.Transport(),
			BaseURL:      cfg.BackendBaseURL(),
			WebsocketURL: cfg.WebsocketURL(),
		},
		Reconnect: effectiveReconnect{
			MaxAttempts:      cfg.MaxAttempts(),
			InitialBackoffMS: cfg.InitialBackoff().Milliseconds(),
			MaxBackoffMS:     cfg.MaxBackoff().Milliseconds(),
			BufferSize:       cfg.SendBufferSize(),
		},
		TaskAPI: maskTaskAPI(cfg.TaskAPISettings()),
		UI: effectiveUI{
			DarkTheme:       cfg.DarkTheme(),
			PanelBreakpoint: cfg.PanelBreakpoint(),
			ReadyTimeoutMS:  cfg.ReadyTimeout().Milliseconds(),
		},
		Storage: config.StorageConfig{Backend: cfg.StorageBackend()},
		Logging: config.LoggingConfig{Level: cfg.LogLevel(), Format: cfg.LogFormat()},
	}
}

func maskTaskAPI(cfg types.TaskAPIConfig) types.TaskAPIConfig {
	if cfg.APIKey != "" {
		cfg.APIKey = "********"
	}
	return cfg
}

func writeConfigOutput(out io.Writer, format string, payload any) error {
	switch format {
	case configFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	case configFormatTOML:
		data, err := toml.Marshal(payload)
		if err != nil {
			return err
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		_, err = out.Write(data)
		return err
	default:
		return errors.New("unsupported format")
	}
}

func resolveConfigFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", configFormatTOML:
		return configFormatTOML, nil
	case configFormatJSON:
		return configFormatJSON, nil
	default:
		return "", errors.New("invalid format: must be toml or json")
	}
}
