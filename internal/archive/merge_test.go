package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekcal/internal/jsonfile"
	"weekcal/internal/model"
)

func writeWeek(t *testing.T, dir, label string, events ...model.Event) string {
	t.Helper()
	path := filepath.Join(dir, "week-"+label+".json")
	require.NoError(t, jsonfile.Write(path, model.WeekFile{
		Week:   label,
		Events: events,
		Count:  len(events),
		Source: "icalbuddy",
	}))
	return path
}

func standup() model.Event {
	return model.Event{
		Title: "Standup",
		Start: "2025-01-05T09:00:00+00:00",
		End:   "2025-01-05T09:15:00+00:00",
	}
}

func TestMerge_AdjacentWeeksSameDaySuppressed(t *testing.T) {
	dir := t.TempDir()
	w1 := writeWeek(t, dir, "2025-W01", standup())
	writeWeek(t, dir, "2025-W02", standup())

	res, err := NewMerger(nil).Merge(2025, dir, nil)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	assert.Equal(t, "Standup", res.Events[0].Title)
	assert.Equal(t, "2025-W01", res.Events[0].SourceWeek)
	assert.Equal(t, w1, res.Events[0].SourceFile)
	assert.Empty(t, res.Duplicates)
}

func TestMerge_NonAdjacentWeeksReported(t *testing.T) {
	dir := t.TempDir()
	w1 := writeWeek(t, dir, "2025-W01", standup())
	w10 := writeWeek(t, dir, "2025-W10", standup())

	res, err := NewMerger(nil).Merge(2025, dir, nil)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, model.Duplicate{
		Title:         "Standup",
		Start:         "2025-01-05T09:00:00+00:00",
		End:           "2025-01-05T09:15:00+00:00",
		FirstSeenFile: w1,
		CurrentFile:   w10,
	}, res.Duplicates[0])
}

func TestMerge_RepeatWithinSameWeekReported(t *testing.T) {
	dir := t.TempDir()
	writeWeek(t, dir, "2025-W01", standup(), standup())

	res, err := NewMerger(nil).Merge(2025, dir, nil)
	require.NoError(t, err)

	assert.Len(t, res.Events, 1)
	assert.Len(t, res.Duplicates, 1)
}

func TestMerge_YearBoundaryAdjacency(t *testing.T) {
	dir := t.TempDir()
	ev := model.Event{Title: "NYE", Start: "2025-12-31T20:00:00+08:00", End: "2025-12-31T23:00:00+08:00"}
	writeWeek(t, dir, "2025-W52", ev)
	writeWeek(t, dir, "2026-W01", ev)

	res, err := NewMerger(nil).Merge(2025, dir, nil)
	require.NoError(t, err)

	assert.Len(t, res.Events, 1)
	assert.Empty(t, res.Duplicates)
}

func TestMerge_SameTitleDifferentTimesKept(t *testing.T) {
	dir := t.TempDir()
	a := standup()
	b := standup()
	b.Start = "2025-01-05T15:00:00+00:00"
	b.End = "2025-01-05T15:15:00+00:00"
	writeWeek(t, dir, "2025-W01", a, b)

	res, err := NewMerger(nil).Merge(2025, dir, nil)
	require.NoError(t, err)

	assert.Len(t, res.Events, 2)
	assert.Empty(t, res.Duplicates)
}

func TestMerge_OffsetSpellingCollapses(t *testing.T) {
	dir := t.TempDir()
	a := standup()
	b := standup()
	b.Start = "2025-01-05T09:00:00Z"
	b.End = "2025-01-05T09:15:00Z"
	writeWeek(t, dir, "2025-W01", a)
	writeWeek(t, dir, "2025-W02", b)

	res, err := NewMerger(nil).Merge(2025, dir, nil)
	require.NoError(t, err)

	assert.Len(t, res.Events, 1)
	assert.Empty(t, res.Duplicates)
}

func TestMerge_YearFilterExact(t *testing.T) {
	dir := t.TempDir()
	writeWeek(t, dir, "2025-W01",
		model.Event{Title: "old", Start: "2024-12-31T23:59:59+00:00", End: "2025-01-01T00:30:00+00:00"},
		model.Event{Title: "in", Start: "2025-01-01T00:00:00+00:00", End: "2025-01-01T01:00:00+00:00"},
	)
	writeWeek(t, dir, "2025-W52",
		model.Event{Title: "next", Start: "2026-01-01T00:00:00+00:00", End: "2026-01-01T01:00:00+00:00"},
		model.Event{Title: "broken", Start: "soon", End: "later"},
	)

	res, err := NewMerger(nil).Merge(2025, dir, nil)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	assert.Equal(t, "in", res.Events[0].Title)
}

func TestMerge_ExcludeCalendars(t *testing.T) {
	dir := t.TempDir()
	holiday := model.Event{Title: "New Year", Calendar: "中国大陆节假日", Start: "2025-01-01T00:00:00+08:00", End: "2025-01-01T23:59:59+08:00", AllDay: true}
	bday := model.Event{Title: "Mum", Calendar: "Birthdays", Start: "2025-01-02T00:00:00+08:00", End: "2025-01-02T23:59:59+08:00", AllDay: true}
	work := model.Event{Title: "Work", Calendar: "Work", Start: "2025-01-02T09:00:00+08:00", End: "2025-01-02T10:00:00+08:00"}
	writeWeek(t, dir, "2025-W01", holiday, bday, work)

	res, err := NewMerger(nil).Merge(2025, dir, []string{"节假日", "Birth"})
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	assert.Equal(t, "Work", res.Events[0].Title)
}

func TestMerge_SortedByStart(t *testing.T) {
	dir := t.TempDir()
	writeWeek(t, dir, "2025-W02",
		model.Event{Title: "late", Start: "2025-01-08T18:00:00+00:00", End: "2025-01-08T19:00:00+00:00"},
		model.Event{Title: "early", Start: "2025-01-06T08:00:00+00:00", End: "2025-01-06T09:00:00+00:00"},
	)
	writeWeek(t, dir, "2025-W01",
		model.Event{Title: "first", Start: "2025-01-01T08:00:00+00:00", End: "2025-01-01T09:00:00+00:00"},
	)

	res, err := NewMerger(nil).Merge(2025, dir, nil)
	require.NoError(t, err)

	var titles []string
	for _, e := range res.Events {
		titles = append(titles, e.Title)
	}
	assert.Equal(t, []string{"first", "early", "late"}, titles)
}

func TestMerge_SkipsBadAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeWeek(t, dir, "2025-W01", standup())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "week-2025-W02.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "week-2025-W03.json"), []byte(`{"events": "nope"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "week-2025-W04-icalbuddy.json"), []byte(`{"events": []}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "raw"), 0o755))

	res, err := NewMerger(nil).Merge(2025, dir, nil)
	require.NoError(t, err)

	assert.Len(t, res.Events, 1)
	assert.Equal(t, 1, res.FilesRead)
	assert.Equal(t, 2, res.FilesSkipped)
}

func TestMerge_MalformedEventDropsOnlyItself(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "week-2025-W02.json"), []byte(`{"week":"2025-W02","events":[
		{"title":"Plan","start":"2025-01-07T10:00:00+00:00","end":"2025-01-07T11:00:00+00:00"},
		{"title":"Broken","start":12345},
		"not an event"
	]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "week-2025-W03.json"), []byte(`{"week":"W3","count":"1","events":[
		{"title":"Review","start":"2025-01-14T15:00:00+00:00","end":"2025-01-14T16:00:00+00:00"}
	]}`), 0o644))

	res, err := NewMerger(nil).Merge(2025, dir, nil)
	require.NoError(t, err)

	require.Len(t, res.Events, 2)
	assert.Equal(t, "Plan", res.Events[0].Title)
	assert.Equal(t, "2025-W02", res.Events[0].SourceWeek)
	assert.Equal(t, "Review", res.Events[1].Title)
	assert.Equal(t, "W3", res.Events[1].SourceWeek)
	assert.Equal(t, 2, res.FilesRead)
	assert.Equal(t, 0, res.FilesSkipped)
	assert.Equal(t, 2, res.EventsDropped)
}

func TestLoadWeekFile_NonStringWeekFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "week-2025-W05.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"week":5,"events":null}`), 0o644))

	week, err := LoadWeekFile(path)
	require.NoError(t, err)
	assert.Empty(t, week.Label)
	assert.Empty(t, week.Events)
	assert.Zero(t, week.Dropped)
}

func TestMerge_FallsBackToFileStemForLabel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "week-2025-W03.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"events":[{"title":"X","start":"2025-01-14T10:00:00+00:00","end":"2025-01-14T11:00:00+00:00"}]}`), 0o644))

	res, err := NewMerger(nil).Merge(2025, dir, nil)
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	assert.Equal(t, "week-2025-W03", res.Events[0].SourceWeek)
}

func TestMerge_MissingDirIsError(t *testing.T) {
	_, err := NewMerger(nil).Merge(2025, filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestMerge_EmptyDir(t *testing.T) {
	res, err := NewMerger(nil).Merge(2025, t.TempDir(), nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Events)
	assert.Empty(t, res.Events)
	assert.Empty(t, res.Duplicates)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitList(" a, b,,c ,"))
	assert.Nil(t, SplitList(""))
}
