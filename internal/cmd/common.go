package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/chainminer/internal/config"
	"github.com/harrison/chainminer/internal/store"
)

// loadConfig loads --config if given, otherwise .chainminer/config.yaml
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// resolveDBPath picks the store path: --db-path, then CHAINMINER_HOME, then config
func resolveDBPath(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if dbPath, _ := cmd.Flags().GetString("db-path"); dbPath != "" {
		return dbPath, nil
	}
	if os.Getenv(config.HomeEnv) != "" {
		return config.GetStoreDBPath()
	}
	return cfg.Store.DBPath, nil
}

// resolveLogDir picks the run log directory: --log-dir, then CHAINMINER_HOME, then config
func resolveLogDir(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if logDir, _ := cmd.Flags().GetString("log-dir"); logDir != "" {
		return logDir, nil
	}
	if os.Getenv(config.HomeEnv) != "" {
		return config.GetLogDir()
	}
	return cfg.LogDir, nil
}

// openExistingStore opens the store for read commands. A missing database
// returns nil without error so callers can print a hint instead.
func openExistingStore(cmd *cobra.Command) (*store.Store, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, "", err
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, dbPath, nil
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, dbPath, fmt.Errorf("open mining store: %w", err)
	}
	return st, dbPath, nil
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: .chainminer/config.yaml)")
	cmd.Flags().String("db-path", "", "Path to the mining store database")
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("since", "", "First bucket to include (e.g. 2018-03-01)")
	cmd.Flags().String("until", "", "Last bucket to include (e.g. 2018-03-31)")
}

func rangeFromFlags(cmd *cobra.Command) store.Range {
	since, _ := cmd.Flags().GetString("since")
	until, _ := cmd.Flags().GetString("until")
	return store.Range{Since: since, Until: until}
}

// confirmAction prompts on out and reads a yes/no answer from in
func confirmAction(in io.Reader, out io.Writer) bool {
	scanner := bufio.NewScanner(in)

	fmt.Fprintf(out, "Continue? [y/N]: ")

	if !scanner.Scan() {
		return false
	}

	response := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return response == "y" || response == "yes"
}
