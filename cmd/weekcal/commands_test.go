package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekcal/internal/extract"
	"weekcal/internal/isoweek"
	"weekcal/internal/jsonfile"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

func writeWeek(t *testing.T, dir, label string, events ...model.Event) {
	t.Helper()
	require.NoError(t, jsonfile.Write(filepath.Join(dir, "week-"+label+".json"), model.WeekFile{
		Week: label, Events: events, Count: len(events), Source: "icalbuddy",
	}))
}

func standup() model.Event {
	return model.Event{
		Title: "Standup", Calendar: "Work",
		Start: "2025-01-05T09:00:00+00:00", End: "2025-01-05T09:15:00+00:00",
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	assert.Equal(t, "weekcal.yaml", resolveConfigPath(""))

	t.Setenv(configEnv, "/etc/weekcal.yaml")
	assert.Equal(t, "/etc/weekcal.yaml", resolveConfigPath(""))
	assert.Equal(t, "x.yaml", resolveConfigPath("x.yaml"))
}

func TestLoadConfig_UnwritableFirstRun(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))

	var logs bytes.Buffer
	c, err := loadConfig(filepath.Join(parent, "weekcal.yaml"), appLog.New(&logs, appLog.LevelDebug))
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.NotEmpty(t, c.WeeksDir)
	assert.Contains(t, logs.String(), "using default config without saving it")

	bad := filepath.Join(t.TempDir(), "weekcal.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("refresh: [\n"), 0o644))
	_, err = loadConfig(bad, appLog.Discard())
	assert.Error(t, err)
}

func TestParseDay(t *testing.T) {
	got, err := parseDay("start", "2025-01-06", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDay("start", "", time.UTC)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseDay("start", "06/01/2025", time.UTC)
	assert.ErrorContains(t, err, "--start")
}

func TestBuildArchive_ReportsAndIsReproducible(t *testing.T) {
	weeks := t.TempDir()
	writeWeek(t, weeks, "2025-W01", standup())
	writeWeek(t, weeks, "2025-W02", standup())
	writeWeek(t, weeks, "2025-W10", standup())

	out := t.TempDir()
	opts := buildArchiveOptions{
		Year:        2025,
		WeeksDir:    weeks,
		Output:      filepath.Join(out, "all-2025.json"),
		Report:      filepath.Join(out, "dedup-review.md"),
		MaxMB:       5,
		GeneratedAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	var stdout bytes.Buffer
	require.NoError(t, buildArchive(opts, &stdout, appLog.Discard()))
	assert.Contains(t, stdout.String(), "1 events from 3 week files (0 skipped), 1 duplicates")

	first, err := os.ReadFile(opts.Report)
	require.NoError(t, err)
	assert.Contains(t, string(first), "- generated: 2025-03-01T08:00:00")
	assert.Contains(t, string(first), "## Duplicates detected (title+start+end): 1")

	stdout.Reset()
	require.NoError(t, buildArchive(opts, &stdout, appLog.Discard()))
	second, err := os.ReadFile(opts.Report)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestBuildArchive_MissingWeeksDir(t *testing.T) {
	out := t.TempDir()
	err := buildArchive(buildArchiveOptions{
		Year:     2025,
		WeeksDir: filepath.Join(out, "missing"),
		Output:   filepath.Join(out, "all-2025.json"),
		Report:   filepath.Join(out, "dedup-review.md"),
		MaxMB:    5,
	}, &bytes.Buffer{}, appLog.Discard())
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(out, "dedup-review.md"))
}

func TestReadWeek(t *testing.T) {
	weeks := t.TempDir()
	writeWeek(t, weeks, "2025-W02",
		model.Event{Title: "周会", Calendar: "工作", Start: "2025-01-06T09:00:00+08:00", End: "2025-01-06T10:00:00+08:00"},
	)

	var stdout bytes.Buffer
	err := readWeek(readWeekOptions{
		Week:     isoweek.Week{Year: 2025, Num: 2},
		WeeksDir: weeks,
		Table:    true,
	}, &stdout)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(weeks, "normalized-week-2025-W02.json"))
	assert.Contains(t, stdout.String(), "| 周会")
	assert.Contains(t, stdout.String(), "(1 events)")

	err = readWeek(readWeekOptions{Week: isoweek.Week{Year: 2025, Num: 3}, WeeksDir: weeks}, &stdout)
	assert.Error(t, err)
}

type stubFetcher struct {
	starts []time.Time
	failOn time.Time
}

func (s *stubFetcher) Extract(_ context.Context, req extract.Request) (*extract.Result, error) {
	s.starts = append(s.starts, req.Start)
	if req.Start.Equal(s.failOn) {
		return nil, errors.New("tool exploded")
	}
	label := isoweek.Label(req.Start)
	return &extract.Result{
		WeekPath: "week-" + label + ".json",
		Week:     &model.WeekFile{Week: label, Count: 2},
	}, nil
}

func TestBackfill_ContinuesPastFailures(t *testing.T) {
	f := &stubFetcher{failOn: time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)}
	var stdout bytes.Buffer

	err := backfill(context.Background(), f, extract.Request{},
		time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC),
		&stdout, appLog.Discard())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "week of 2025-01-13")
	assert.Equal(t, []time.Time{
		time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
	}, f.starts)
	assert.Contains(t, stdout.String(), "backfill: 3 weeks, 4 events, 1 failed")
}

func TestExportICS(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "all-2025.json")
	holiday := model.Event{
		Title: "元旦", Calendar: "节假日", AllDay: true,
		Start: "2025-01-01T00:00:00+08:00", End: "2025-01-01T23:59:59+08:00",
	}
	broken := model.Event{Title: "broken", Start: "soon", End: "later"}
	require.NoError(t, jsonfile.Write(archivePath, []model.Event{standup(), holiday, broken}))
	output := filepath.Join(dir, "all-2025.ics")

	var stdout bytes.Buffer
	require.NoError(t, exportICS([]string{archivePath}, output, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), &stdout, appLog.Discard()))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "BEGIN:VCALENDAR"))
	assert.Contains(t, string(data), "SUMMARY:Standup")
	assert.Contains(t, string(data), "DTSTART;VALUE=DATE:20250101")
	assert.Contains(t, stdout.String(), "(2 events, 1 skipped, 2 read back)")
}
