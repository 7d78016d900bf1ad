package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"cockpit/internal/types"
)

const (
	defaultBackendAddress  = "127.0.0.1:8000"
	defaultMaxAttempts     = 3
	defaultInitialBackoff  = 500
	defaultMaxBackoff      = 8000
	defaultBufferSize      = 64
	defaultPanelBreakpoint = 100
	defaultReadyTimeout    = 1500
)

const (
	TransportWebsocket = "websocket"
	TransportSSE       = "sse"

	StorageBackendBbolt = "bbolt"
	StorageBackendFile  = "file"
)

type Config struct {
	Backend   BackendConfig   `toml:"backend"`
	Reconnect ReconnectConfig `toml:"reconnect"`
	TaskAPI   TaskAPIConfig   `toml:"task_api"`
	UI        UIConfig        `toml:"ui"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
}

type BackendConfig struct {
	Address   string `toml:"address"`
	Transport string `toml:"transport"`
}

type ReconnectConfig struct {
	MaxAttempts      int `toml:"max_attempts"`
	InitialBackoffMS int `toml:"initial_backoff_ms"`
	MaxBackoffMS     int `toml:"max_backoff_ms"`
	BufferSize       int `toml:"buffer_size"`
}

type TaskAPIConfig struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	DefaultProject string `toml:"default_project"`
}

type UIConfig struct {
	DarkTheme       *bool `toml:"dark_theme"`
	PanelBreakpoint int   `toml:"panel_breakpoint"`
	ReadyTimeoutMS  int   `toml:"ready_timeout_ms"`
}

type StorageConfig struct {
	Backend string `toml:"backend"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			Address:   defaultBackendAddress,
			Transport: TransportWebsocket,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts:      defaultMaxAttempts,
			InitialBackoffMS: defaultInitialBackoff,
			MaxBackoffMS:     defaultMaxBackoff,
			BufferSize:       defaultBufferSize,
		},
		UI: UIConfig{
			PanelBreakpoint: defaultPanelBreakpoint,
			ReadyTimeoutMS:  defaultReadyTimeout,
		},
		Storage: StorageConfig{
			Backend: StorageBackendBbolt,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "logfmt",
		},
	}
}

func LoadConfig() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadConfigFromPath(path)
}

func LoadConfigFromPath(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) BackendAddress() string {
	addr := strings.TrimSpace(c.Backend.Address)
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimPrefix(addr, "ws://")
	addr = strings.TrimPrefix(addr, "wss://")
	addr = strings.TrimRight(addr, "/")
	if addr == "" {
		return defaultBackendAddress
	}
	return addr
}

func (c Config) BackendBaseURL() string {
	return "http://" + c.BackendAddress()
}

func (c Config) WebsocketURL() string {
	return "ws://" + c.BackendAddress() + "/ws"
}

func (c Config) Transport() string {
	switch strings.ToLower(strings.TrimSpace(c.Backend.Transport)) {
	case TransportSSE:
		return TransportSSE
	default:
		return TransportWebsocket
	}
}

func (c Config) MaxAttempts() int {
	if c.Reconnect.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return c.Reconnect.MaxAttempts
}

func (c Config) InitialBackoff() time.Duration {
	ms := c.Reconnect.InitialBackoffMS
	if ms <= 0 {
		ms = defaultInitialBackoff
	}
	return time.Duration(ms) * time.Millisecond
}

func (c Config) MaxBackoff() time.Duration {
	ms := c.Reconnect.MaxBackoffMS
	if ms <= 0 {
		ms = defaultMaxBackoff
	}
	maxBackoff := time.Duration(ms) * time.Millisecond
	if initial := c.InitialBackoff(); maxBackoff < initial {
		return initial
	}
	return maxBackoff
}

func (c Config) SendBufferSize() int {
	if c.Reconnect.BufferSize <= 0 {
		return defaultBufferSize
	}
	return c.Reconnect.BufferSize
}

func (c Config) TaskAPISettings() types.TaskAPIConfig {
	return types.TaskAPIConfig{
		Endpoint:       strings.TrimRight(strings.TrimSpace(c.TaskAPI.Endpoint), "/"),
		APIKey:         strings.TrimSpace(c.TaskAPI.APIKey),
		DefaultProject: strings.TrimSpace(c.TaskAPI.DefaultProject),
	}
}

func (c Config) DarkTheme() bool {
	if c.UI.DarkTheme == nil {
		return true
	}
	return *c.UI.DarkTheme
}

func (c Config) PanelBreakpoint() int {
	if c.UI.PanelBreakpoint <= 0 {
		return defaultPanelBreakpoint
	}
	return c.UI.PanelBreakpoint
}

func (c Config) ReadyTimeout() time.Duration {
	ms := c.UI.ReadyTimeoutMS
	if ms <= 0 {
		ms = defaultReadyTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

func (c Config) StorageBackend() string {
	switch strings.ToLower(strings.TrimSpace(c.Storage.Backend)) {
	case StorageBackendFile:
		return StorageBackendFile
	default:
		return StorageBackendBbolt
	}
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

func (c Config) LogFormat() string {
	if strings.EqualFold(strings.TrimSpace(c.Logging.Format), "json") {
		return "json"
	}
	return "logfmt"
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

// ResolvePath expands ~/ and makes relative paths relative to DataDir.
func ResolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, path), nil
}
