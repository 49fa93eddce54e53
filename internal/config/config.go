package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither --config nor WEEKCAL_CONFIG is given.
const DefaultPath = "weekcal.yaml"

var (
	ErrInvalidRefresh  = errors.New("refresh must be a standard 5-field cron spec")
	ErrInvalidTimezone = errors.New("timezone must be an IANA zone name")

	// ErrWriteDefaults is returned together with a usable default config
	// when the first-run config file could not be written.
	ErrWriteDefaults = errors.New("write default config")
)

// ToolConfig describes the external calendar query tool.
type ToolConfig struct {
	// Command is the executable name or path.
	Command string `yaml:"command" json:"command" validate:"required"`
	// Delimiter separates attributes on each output line.
	Delimiter string `yaml:"delimiter" json:"delimiter" validate:"required"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the read-only API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password" validate:"required"`
}

// Config is the top-level application configuration.
type Config struct {
	// DataDir is the root for every artifact unless a more specific dir is set.
	DataDir string `yaml:"data_dir" json:"data_dir" validate:"required"`

	// WeeksDir holds week-YYYY-Www.json files. Defaults to DataDir.
	WeeksDir string `yaml:"weeks_dir" json:"weeks_dir"`

	// RawDir holds raw tool dumps. Defaults to WeeksDir/raw.
	RawDir string `yaml:"raw_dir" json:"raw_dir"`

	// LogFile is the per-run extraction log, truncated on every fetch.
	LogFile string `yaml:"log_file" json:"log_file"`

	// ArchiveDir receives all-<year>.json and dedup-review.md.
	ArchiveDir string `yaml:"archive_dir" json:"archive_dir"`

	// Timezone is the IANA zone attached to naive tool times. Empty means
	// the process's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	Tool ToolConfig `yaml:"tool" json:"tool"`

	// IncludeCalendars narrows fetches to calendars whose name contains any
	// entry. Empty means all.
	IncludeCalendars []string `yaml:"include_calendars" json:"include_calendars"`

	// ExcludeCalendars drops calendars whose name contains any entry, both
	// at fetch and at archive time.
	ExcludeCalendars []string `yaml:"exclude_calendars" json:"exclude_calendars"`

	// MaxMB is the archive chunk size threshold in MiB.
	MaxMB float64 `yaml:"max_mb" json:"max_mb" validate:"gt=0"`

	// RefreshCron is a cron-style schedule string (e.g. "0 * * * *") for
	// the schedule command.
	RefreshCron string `yaml:"refresh" json:"refresh" validate:"required"`

	// Listen is the HTTP listen address for the read-only API.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		DataDir: filepath.Join("data", "calendar"),
		Tool: ToolConfig{
			Command:   "icalBuddy",
			Delimiter: "|@|",
		},
		IncludeCalendars: []string{},
		ExcludeCalendars: []string{},
		MaxMB:            5.0,
		RefreshCron:      "0 * * * *",
		Listen:           "127.0.0.1:8080",
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly. Derived directories
// follow DataDir.
func (c *Config) Normalize() {
	if c.DataDir == "" {
		c.DataDir = filepath.Join("data", "calendar")
	}
	if c.WeeksDir == "" {
		c.WeeksDir = c.DataDir
	}
	if c.RawDir == "" {
		c.RawDir = filepath.Join(c.WeeksDir, "raw")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "fetch_calendar.log")
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = filepath.Join(c.DataDir, "archive")
	}
	if c.Tool.Command == "" {
		c.Tool.Command = "icalBuddy"
	}
	if c.Tool.Delimiter == "" {
		c.Tool.Delimiter = "|@|"
	}
	if c.MaxMB <= 0 {
		c.MaxMB = 5.0
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 * * * *"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.IncludeCalendars == nil {
		c.IncludeCalendars = []string{}
	}
	if c.ExcludeCalendars == nil {
		c.ExcludeCalendars = []string{}
	}
}

// Validate checks struct tags, the cron spec and the timezone.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidRefresh, c.RefreshCron, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. A nil location means "use the local zone".
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Timezone)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, fmt.Errorf("%w %s: %w", ErrWriteDefaults, path, err)
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".weekcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Basic auth credentials may live here.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
