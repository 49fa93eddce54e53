// Package main provides the weekcal command line: weekly calendar fetches,
// yearly archive builds and a read-only API over the week files.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"weekcal/internal/archive"
	"weekcal/internal/config"
	appLog "weekcal/internal/log"
)

// configEnv names the config file when --config is not given.
const configEnv = "WEEKCAL_CONFIG"

var (
	configPath string
	logLevel   string

	// Set by PersistentPreRunE for every subcommand.
	cfg    *config.Config
	logger *appLog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "weekcal",
	Short:             "Weekly calendar snapshots and yearly archives",
	Long:              "weekcal fetches one ISO week of calendar events at a time, merges the week files into a deduplicated yearly archive and serves them read-only.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (default $"+configEnv+" or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(_ *cobra.Command, _ []string) error {
	logger = appLog.New(os.Stderr, appLog.ParseLevel(logLevel))
	appLog.SetLevel(appLog.ParseLevel(logLevel))

	path := resolveConfigPath(configPath)
	loaded, err := loadConfig(path, logger)
	if err != nil {
		return err
	}
	cfg = loaded
	logger.Debug("config loaded",
		"path", path,
		"weeks_dir", cfg.WeeksDir,
		"archive_dir", cfg.ArchiveDir,
		"tool", cfg.Tool.Command,
	)
	return nil
}

// loadConfig loads path. When a first run cannot save the default config,
// the defaults are still used and the failure is only logged.
func loadConfig(path string, l *appLog.Logger) (*config.Config, error) {
	loaded, err := config.Load(path)
	if err != nil {
		if loaded == nil || !errors.Is(err, config.ErrWriteDefaults) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		l.Warn("using default config without saving it", "path", path, "err", err.Error())
	}
	return loaded, nil
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(configEnv); env != "" {
		return env
	}
	return config.DefaultPath
}

// parseDay parses a YYYY-MM-DD flag value in loc. Empty returns the zero time.
func parseDay(flagName, value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, zoneOrLocal(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flagName, err)
	}
	return t, nil
}

// listOrDefault returns the comma-separated flag value when the flag was set,
// otherwise def.
func listOrDefault(cmd *cobra.Command, flagName, value string, def []string) []string {
	if cmd.Flags().Changed(flagName) {
		return archive.SplitList(value)
	}
	return def
}
