package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"cockpit/internal/client"
	"cockpit/internal/config"
	"cockpit/internal/conn"
	"cockpit/internal/store"
	"cockpit/internal/types"
)

type commandWiring struct {
	stdout      io.Writer
	stderr      io.Writer
	configPath  func() (string, error)
	loadConfig  func(path string) (config.Config, error)
	openStorage func(cfg config.Config) (store.KV, error)
	newAPI      func(cfg config.Config, taskAPI func() types.TaskAPIConfig) *client.Client
	newDialer   func(cfg config.Config, api *client.Client) conn.Dialer
	uiLogWriter func() (io.WriteCloser, error)
	runUI       func(s *stack) error
	version     string
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:      stdout,
		stderr:      stderr,
		configPath:  config.ConfigPath,
		loadConfig:  config.LoadConfigFromPath,
		openStorage: openStorage,
		newAPI:      newAPIClient,
		newDialer:   newDialer,
		uiLogWriter: openUILog,
		runUI:       runTerminalUI,
		version:     buildVersion(),
	}
}

func newRootCmd(wiring commandWiring) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cockpit",
		Short:         "Terminal client for an interactive agent chat backend",
		Version:       wiring.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(wiring.stdout)
	rootCmd.SetErr(wiring.stderr)

	uiCmd := newUICmd(wiring)
	rootCmd.RunE = uiCmd.RunE
	rootCmd.AddCommand(
		uiCmd,
		newTailCmd(wiring),
		newFetchCmd(wiring),
		newSessionCmd(wiring),
		newConfigCmd(wiring),
		newHealthCmd(wiring),
	)
	return rootCmd
}

func openStorage(cfg config.Config) (store.KV, error) {
	dbPath, err := config.StoragePath()
	if err != nil {
		return nil, err
	}
	filePath, err := config.FileStoragePath()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.StorageBackend(), store.Paths{DBPath: dbPath, FilePath: filePath})
}

func newAPIClient(cfg config.Config, taskAPI func() types.TaskAPIConfig) *client.Client {
	if taskAPI == nil {
		settings := cfg.TaskAPISettings()
		taskAPI = func() types.TaskAPIConfig { return settings }
	}
	return client.New(cfg.BackendBaseURL(), client.WithTaskAPI(taskAPI))
}

func newDialer(cfg config.Config, api *client.Client) conn.Dialer {
	if cfg.Transport() == config.TransportSSE {
		return conn.SSEDialer{Client: api}
	}
	return conn.WebsocketDialer{BaseURL: cfg.WebsocketURL()}
}
