package config

import (
	"os"
	"path/filepath"
)

const appDirName = ".cockpit"

// DataDir returns the base data directory for cockpit.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// ConfigPath returns the path to the TOML configuration file.
func ConfigPath() (string, error) {
	return dataFile("config.toml")
}

// StoragePath returns the path to the bbolt client storage database.
func StoragePath() (string, error) {
	return dataFile("storage.db")
}

// FileStoragePath returns the path to the JSON client storage file.
func FileStoragePath() (string, error) {
	return dataFile("storage.json")
}

// UILogPath returns the path the terminal UI logs to.
func UILogPath() (string, error) {
	return dataFile("ui.log")
}

func dataFile(name string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}
