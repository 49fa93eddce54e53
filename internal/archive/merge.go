// Package archive merges week files into a yearly event archive and writes
// it out in size-bounded chunks together with a duplicate-review report.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"weekcal/internal/isoweek"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
	"weekcal/internal/schema"
)

var weekFileRe = regexp.MustCompile(`^week-\d{4}-W\d{2}\.json$`)

// IsWeekFileName reports whether name follows the week-YYYY-Www.json pattern.
func IsWeekFileName(name string) bool {
	return weekFileRe.MatchString(name)
}

// MergeResult is the outcome of one merge.
type MergeResult struct {
	Events     []model.Event
	Duplicates []model.Duplicate
	// FilesRead and FilesSkipped count week files that matched the naming
	// pattern.
	FilesRead    int
	FilesSkipped int
	// EventsDropped counts malformed events left out of files that were
	// otherwise read.
	EventsDropped int
}

// Merger builds the flat archive for one year.
type Merger struct {
	log *appLog.Logger
}

// NewMerger returns a Merger. A nil logger discards output.
func NewMerger(logger *appLog.Logger) *Merger {
	if logger == nil {
		logger = appLog.Discard()
	}
	return &Merger{log: logger}
}

// firstSeen remembers where a dedup key was first kept.
type firstSeen struct {
	file string
	week string
	day  string
}

// Merge reads every week file in weeksDir and returns the deduplicated events
// whose start falls in year, sorted by start. A missing or unreadable
// directory is an error; individual bad files are skipped.
func (m *Merger) Merge(year int, weeksDir string, excludeCalendars []string) (*MergeResult, error) {
	files, err := ListWeekFiles(weeksDir)
	if err != nil {
		return nil, err
	}

	res := &MergeResult{Events: []model.Event{}, Duplicates: []model.Duplicate{}}
	seen := make(map[model.DedupKey]firstSeen)

	for _, path := range files {
		week, err := LoadWeekFile(path)
		if err != nil {
			m.log.Debug("week file skipped", "path", path, "reason", err.Error())
			res.FilesSkipped++
			continue
		}
		res.FilesRead++
		res.EventsDropped += week.Dropped
		if week.Dropped > 0 {
			m.log.Debug("malformed events dropped", "path", path, "count", week.Dropped)
		}

		label := week.Label
		if label == "" {
			label = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		for _, ev := range week.Events {
			start, err := ev.StartTime()
			if err != nil || start.Year() != year {
				continue
			}
			if excluded(ev.Calendar, excludeCalendars) {
				continue
			}

			key := ev.Key()
			day := start.Format("2006-01-02")
			if first, ok := seen[key]; ok {
				if first.day == day && isoweek.Adjacent(first.week, label) {
					// Overlapping fetch windows, not a real duplicate.
					continue
				}
				res.Duplicates = append(res.Duplicates, model.Duplicate{
					Title:         ev.Title,
					Start:         ev.Start,
					End:           ev.End,
					FirstSeenFile: first.file,
					CurrentFile:   path,
				})
				continue
			}

			seen[key] = firstSeen{file: path, week: label, day: day}
			ev.SourceWeek = label
			ev.SourceFile = path
			res.Events = append(res.Events, ev)
		}
	}

	sort.SliceStable(res.Events, func(i, j int) bool {
		return res.Events[i].Start < res.Events[j].Start
	})

	m.log.Info("archive merged",
		"year", year,
		"weeks_dir", weeksDir,
		"files", res.FilesRead,
		"files_skipped", res.FilesSkipped,
		"events_dropped", res.EventsDropped,
		"events", len(res.Events),
		"duplicates", len(res.Duplicates),
	)
	return res, nil
}

// ListWeekFiles returns the week files of dir in lexicographic (and therefore
// chronological) order. Other files are ignored.
func ListWeekFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read weeks dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsWeekFileName(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// WeekEvents is what the merge uses from one week file.
type WeekEvents struct {
	// Label is the file's week field when it is a string, otherwise empty.
	Label  string
	Events []model.Event
	// Dropped counts events that failed validation or decoding.
	Dropped int
}

// LoadWeekFile reads a week file. The file is rejected only when it is not
// JSON or has no events list; a malformed event is dropped on its own and
// the rest of the file is kept.
func LoadWeekFile(path string) (*WeekEvents, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateWeekFile(data); err != nil {
		return nil, err
	}
	var envelope struct {
		Week   json.RawMessage   `json:"week"`
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode week file: %w", err)
	}

	out := &WeekEvents{Events: make([]model.Event, 0, len(envelope.Events))}
	if len(envelope.Week) > 0 {
		_ = json.Unmarshal(envelope.Week, &out.Label)
	}
	for _, raw := range envelope.Events {
		if err := schema.ValidateEvent(raw); err != nil {
			out.Dropped++
			continue
		}
		var ev model.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			out.Dropped++
			continue
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

func excluded(calendar string, tokens []string) bool {
	for _, tok := range tokens {
		if tok != "" && strings.Contains(calendar, tok) {
			return true
		}
	}
	return false
}

// SplitList turns "a, b,,c" into ["a" "b" "c"].
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
