// Package weekview turns a week file into the day/week rows a dashboard
// renders.
package weekview

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"weekcal/internal/isoweek"
	"weekcal/internal/model"
)

// Row is one normalized event.
type Row struct {
	Date            string `json:"date"`
	Start           string `json:"start"`
	End             string `json:"end"`
	Title           string `json:"title"`
	Calendar        string `json:"calendar"`
	Category        string `json:"category"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes"`
}

// Meta describes where a View came from.
type Meta struct {
	Week        string  `json:"week"`
	SelectedDay *string `json:"selected_day"`
	Source      string  `json:"source"`
	EventCount  int     `json:"event_count"`
}

// View is the rendered day/week payload.
type View struct {
	Periods []string `json:"periods"`
	Day     []Row    `json:"day"`
	Week    []Row    `json:"week"`
	Meta    Meta     `json:"meta"`
}

// ErrSourceNotFound is returned when no week file exists for a label.
var ErrSourceNotFound = errors.New("week source not found")

// FindSource returns explicit if set (it must exist), otherwise the first of
// week-<label>.json and week-<label>-icalbuddy.json present in dir.
func FindSource(dir, label, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrSourceNotFound, explicit)
		}
		return explicit, nil
	}
	candidates := []string{
		filepath.Join(dir, "week-"+label+".json"),
		filepath.Join(dir, "week-"+label+"-icalbuddy.json"),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSourceNotFound, strings.Join(candidates, ", "))
}

// LoadEvents reads the events array of a week file.
func LoadEvents(path string) ([]model.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var week model.WeekFile
	if err := json.Unmarshal(data, &week); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return week.Events, nil
}

// Normalize converts events to rows sorted by date, start and title. Events
// without a parseable start and end are dropped. Durations are floored to
// whole minutes and never negative.
func Normalize(events []model.Event) []Row {
	rows := make([]Row, 0, len(events))
	for _, ev := range events {
		if ev.Start == "" || ev.End == "" {
			continue
		}
		start, err := ev.StartTime()
		if err != nil {
			continue
		}
		end, err := ev.EndTime()
		if err != nil {
			continue
		}
		minutes := int(end.Sub(start) / time.Minute)
		if minutes < 0 {
			minutes = 0
		}
		rows = append(rows, Row{
			Date:            start.Format("2006-01-02"),
			Start:           start.Format("15:04"),
			End:             end.Format("15:04"),
			Title:           ev.Title,
			Calendar:        ev.Calendar,
			Category:        ev.Calendar,
			DurationMinutes: minutes,
			Notes:           ev.Notes,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Title < b.Title
	})
	return rows
}

// Build assembles the View. day selects the day period; when empty it
// defaults to the Monday of week if there are any rows.
func Build(week isoweek.Week, day string, rows []Row, source string) View {
	if day == "" && len(rows) > 0 {
		day = isoweek.Monday(week, time.UTC).Format("2006-01-02")
	}
	dayRows := make([]Row, 0)
	var selected *string
	if day != "" {
		selected = &day
		for _, r := range rows {
			if r.Date == day {
				dayRows = append(dayRows, r)
			}
		}
	}
	if rows == nil {
		rows = []Row{}
	}
	return View{
		Periods: []string{"day", "week"},
		Day:     dayRows,
		Week:    rows,
		Meta: Meta{
			Week:        week.String(),
			SelectedDay: selected,
			Source:      source,
			EventCount:  len(rows),
		},
	}
}

// Load finds, reads and normalizes the week file for week in dir.
func Load(dir string, week isoweek.Week, day, explicit string) (View, error) {
	path, err := FindSource(dir, week.String(), explicit)
	if err != nil {
		return View{}, err
	}
	events, err := LoadEvents(path)
	if err != nil {
		return View{}, err
	}
	return Build(week, day, Normalize(events), path), nil
}
