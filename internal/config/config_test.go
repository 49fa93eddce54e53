package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "weekcal.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_DerivesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weekcal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /srv/cal\nexclude_calendars: [生日]\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/cal", cfg.WeeksDir)
	assert.Equal(t, filepath.Join("/srv/cal", "raw"), cfg.RawDir)
	assert.Equal(t, filepath.Join("/srv/cal", "archive"), cfg.ArchiveDir)
	assert.Equal(t, filepath.Join("/srv/cal", "fetch_calendar.log"), cfg.LogFile)
	assert.Equal(t, []string{"生日"}, cfg.ExcludeCalendars)
	assert.Equal(t, "icalBuddy", cfg.Tool.Command)
	assert.Equal(t, 5.0, cfg.MaxMB)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		is   error
	}{
		{name: "bad cron", yaml: "refresh: every hour\n", is: ErrInvalidRefresh},
		{name: "bad timezone", yaml: "timezone: Mars/Olympus\n", is: ErrInvalidTimezone},
		{name: "bad listen", yaml: "listen: nowhere\n"},
		{name: "half auth", yaml: "basic_auth:\n  username: admin\n"},
		{name: "not yaml", yaml: "data_dir: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "weekcal.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			_, err := Load(path)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Nil(t, loc)

	cfg.Timezone = "Asia/Shanghai"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", loc.String())
}

func TestSave_EmptyPath(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "x.yaml"), nil))
}

func TestLoad_FirstRunUnwritableKeepsDefaults(t *testing.T) {
	// A regular file where the config directory should be.
	parent := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))

	cfg, err := Load(filepath.Join(parent, "weekcal.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteDefaults)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultConfig().DataDir, cfg.DataDir)
}
