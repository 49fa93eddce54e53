// Package extract fetches one week of events from the calendar tool and
// writes the raw dump and the parsed week file.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"weekcal/internal/datespan"
	"weekcal/internal/isoweek"
	"weekcal/internal/jsonfile"
	"weekcal/internal/lineparse"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

// Source is recorded in every week file written here.
const Source = "icalbuddy"

// Options configures where an Extractor writes and how it parses.
type Options struct {
	WeeksDir  string
	RawDir    string
	LogPath   string // per-run log, truncated on every Extract; empty disables it
	Delimiter string
	Location  *time.Location   // zone for naive tool times; nil means the local zone
	Now       func() time.Time // anchors today/yesterday

	// RunLog, when set, receives the trace of every Extract instead of
	// LogPath. The caller owns and closes it, so several runs share one log.
	RunLog *appLog.Logger
}

// Request selects the week and the filters for one extraction.
type Request struct {
	Start            time.Time
	IncludeCalendars []string
	ExcludeCalendars []string
	// SampleDay, when non-zero, keeps only events starting on that date.
	SampleDay time.Time
}

// Result summarizes one extraction.
type Result struct {
	RunID           string
	Week            *model.WeekFile
	WeekPath        string
	RawPath         string
	RawLines        int
	Parsed          int
	Skipped         int
	IncludeFailOpen bool
}

// Extractor runs the tool and turns its output into a week file.
type Extractor struct {
	runner Runner
	opts   Options
	log    *appLog.Logger
}

// New returns an Extractor. logger receives a one-line summary per run; the
// detailed trace goes to opts.LogPath.
func New(runner Runner, opts Options, logger *appLog.Logger) *Extractor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = appLog.Discard()
	}
	return &Extractor{runner: runner, opts: opts, log: logger}
}

func (e *Extractor) runLog() (*appLog.Logger, error) {
	if e.opts.LogPath == "" {
		return appLog.Discard(), nil
	}
	return appLog.NewFile(e.opts.LogPath, appLog.LevelDebug)
}

// Extract fetches [req.Start, req.Start+7d) and overwrites the raw artifact
// and the week file for that ISO week. Lines that cannot be parsed are
// logged and skipped.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	if e.opts.WeeksDir == "" {
		return nil, errors.New("weeks dir is empty")
	}
	rawDir := e.opts.RawDir
	if rawDir == "" {
		rawDir = filepath.Join(e.opts.WeeksDir, "raw")
	}

	fileLog := e.opts.RunLog
	if fileLog == nil {
		opened, err := e.runLog()
		if err != nil {
			return nil, fmt.Errorf("open run log: %w", err)
		}
		defer opened.Close()
		fileLog = opened
	}

	runID := uuid.NewString()
	runLog := fileLog.With("run_id", runID)

	startDay := time.Date(req.Start.Year(), req.Start.Month(), req.Start.Day(), 0, 0, 0, 0, time.UTC)
	endDay := startDay.AddDate(0, 0, 7)
	label := isoweek.Label(startDay)

	runLog.Info("extract start",
		"week", label,
		"from", startDay.Format("2006-01-02"),
		"to", endDay.Format("2006-01-02"),
		"include", strings.Join(req.IncludeCalendars, ","),
		"exclude", strings.Join(req.ExcludeCalendars, ","),
	)

	lines := e.fetch(ctx, runLog, startDay, endDay)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rawPath := filepath.Join(rawDir, "week-"+label+".txt")
	if err := jsonfile.WriteFile(rawPath, []byte(strings.Join(lines, "\n"))); err != nil {
		return nil, fmt.Errorf("write raw artifact: %w", err)
	}
	runLog.Info("raw saved", "path", rawPath, "lines", len(lines))

	resolver := datespan.NewResolver(e.opts.Now(), e.opts.Location)
	parser := lineparse.New(resolver, e.opts.Delimiter)
	events, skipped := parser.ParseAll(lines)
	for _, s := range skipped {
		runLog.Debug("line skipped", "reason", s.Error(), "raw", s.Raw)
	}
	runLog.Info("lines parsed", "events", len(events), "skipped", len(skipped))

	if !req.SampleDay.IsZero() {
		events = sampleDay(events, req.SampleDay)
		runLog.Info("sample day applied", "day", req.SampleDay.Format("2006-01-02"), "events", len(events))
	}

	res := &Result{
		RunID:    runID,
		RawPath:  rawPath,
		RawLines: len(lines),
		Parsed:   len(events),
		Skipped:  len(skipped),
	}

	if len(req.IncludeCalendars) > 0 {
		kept := filterCalendars(events, req.IncludeCalendars, true)
		if len(kept) == 0 {
			res.IncludeFailOpen = true
			runLog.Warn("include filter matched nothing, keeping all events",
				"filters", strings.Join(req.IncludeCalendars, ","),
				"total", len(events),
			)
		} else {
			events = kept
		}
	}
	if len(req.ExcludeCalendars) > 0 {
		events = filterCalendars(events, req.ExcludeCalendars, false)
	}

	week := &model.WeekFile{
		Week:              label,
		Start:             model.FormatTime(startDay),
		End:               model.FormatTime(endDay),
		Events:            events,
		Count:             len(events),
		Source:            Source,
		Calendars:         model.CalendarSelection(req.IncludeCalendars),
		ExcludedCalendars: nonNil(req.ExcludeCalendars),
	}
	weekPath := filepath.Join(e.opts.WeeksDir, "week-"+label+".json")
	if err := jsonfile.Write(weekPath, week); err != nil {
		return nil, fmt.Errorf("write week file: %w", err)
	}
	runLog.Info("done", "path", weekPath, "events", len(events))

	res.Week = week
	res.WeekPath = weekPath
	e.log.Info("week extracted",
		"run_id", runID,
		"week", label,
		"events", len(events),
		"skipped", len(skipped),
		"path", weekPath,
	)
	return res, nil
}

// fetch runs the tool and returns its non-empty trimmed stdout lines. Tool
// failures are logged, never fatal.
func (e *Extractor) fetch(ctx context.Context, runLog *appLog.Logger, from, to time.Time) []string {
	out, err := e.runner.Run(ctx, from, to)
	if out != nil && len(out.Args) > 0 {
		runLog.Debug("tool command", "cmd", strings.Join(out.Args, " "))
	}
	if err != nil {
		runLog.Error("tool failed", err)
		e.log.Warn("calendar tool failed, treating as empty", "err", err.Error())
		if out == nil {
			return nil
		}
	}
	if s := strings.TrimSpace(out.Stderr); s != "" {
		runLog.Warn("tool stderr", "stderr", s)
	}
	if out.ExitCode != 0 {
		runLog.Warn("tool exited non-zero", "code", out.ExitCode)
	}

	var lines []string
	for _, line := range strings.Split(out.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	runLog.Info("tool output", "lines", len(lines))
	return lines
}

func sampleDay(events []model.Event, day time.Time) []model.Event {
	want := day.Format("2006-01-02")
	kept := make([]model.Event, 0, len(events))
	for _, ev := range events {
		start, err := ev.StartTime()
		if err != nil {
			continue
		}
		if start.Format("2006-01-02") == want {
			kept = append(kept, ev)
		}
	}
	return kept
}

// filterCalendars keeps events whose calendar contains any token when keep is
// true, and drops them when keep is false.
func filterCalendars(events []model.Event, tokens []string, keep bool) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if matchesAny(ev.Calendar, tokens) == keep {
			out = append(out, ev)
		}
	}
	return out
}

func matchesAny(calendar string, tokens []string) bool {
	for _, tok := range tokens {
		if tok != "" && strings.Contains(calendar, tok) {
			return true
		}
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
