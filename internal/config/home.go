package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the chainminer home directory
const HomeEnv = "CHAINMINER_HOME"

// GetHome returns the chainminer home directory
// Priority order:
//  1. CHAINMINER_HOME environment variable (if set)
//  2. .chainminer under the current working directory
//
// The directory is created if it doesn't exist
func GetHome() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return GetHomeWithRoot(cwd)
}

// GetHomeWithRoot resolves the home directory relative to root instead of the
// working directory. CHAINMINER_HOME still takes precedence.
func GetHomeWithRoot(root string) (string, error) {
	home := os.Getenv(HomeEnv)
	if home == "" {
		home = filepath.Join(root, ".chainminer")
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create chainminer home directory: %w", err)
	}
	return home, nil
}

// GetStoreDBPath returns the absolute path to the mining store database
// Always returns: $CHAINMINER_HOME/store/mining.db
func GetStoreDBPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, "store", "mining.db"), nil
}

// GetLogDir returns the run log directory path
func GetLogDir() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}

	logDir := filepath.Join(home, "logs")

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}

	return logDir, nil
}
