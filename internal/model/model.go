package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the canonical serialized form of event instants. The offset
// is always numeric so UTC events render as +00:00, never Z.
const TimeLayout = "2006-01-02T15:04:05-07:00"

// Event is the canonical calendar event record shared by week files and
// archives.
type Event struct {
	Title    string `json:"title"`
	Calendar string `json:"calendar"`
	Start    string `json:"start"`
	End      string `json:"end"`
	AllDay   bool   `json:"allday"`
	Location string `json:"location"`
	Notes    string `json:"notes"`

	// Provenance, set only when an event is merged into an archive.
	SourceWeek string `json:"source_week,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

var instantLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02 15:04:05Z07:00", true},
	{"2006-01-02T15:04Z07:00", true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02", false},
}

// ParseInstant parses the ISO-8601 shapes found in week files. zoned reports
// whether the text carried an explicit offset; naive values are returned in
// UTC.
func ParseInstant(s string) (t time.Time, zoned bool, err error) {
	for _, l := range instantLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return t, l.zoned, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unparseable instant %q", s)
}

// NormalizeInstant returns the canonical text for s, or s itself when it
// cannot be parsed.
func NormalizeInstant(s string) string {
	t, zoned, err := ParseInstant(s)
	if err != nil {
		return s
	}
	if !zoned {
		return t.Format("2006-01-02T15:04:05")
	}
	return FormatTime(t)
}

// StartTime parses the event start.
func (e Event) StartTime() (time.Time, error) {
	t, _, err := ParseInstant(e.Start)
	return t, err
}

// EndTime parses the event end.
func (e Event) EndTime() (time.Time, error) {
	t, _, err := ParseInstant(e.End)
	return t, err
}

// DedupKey identifies logically identical event instances. Start and end are
// compared at full precision so distinct same-day events stay distinct.
type DedupKey struct {
	Title string
	Start string
	End   string
}

func (e Event) Key() DedupKey {
	return DedupKey{
		Title: e.Title,
		Start: NormalizeInstant(e.Start),
		End:   NormalizeInstant(e.End),
	}
}

func (k DedupKey) String() string {
	return k.Title + "|" + k.Start + "|" + k.End
}

// CalendarSelection is the calendar include list recorded in a week file.
// An empty selection serializes as the string "all".
type CalendarSelection []string

func (c CalendarSelection) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte(`"all"`), nil
	}
	return json.Marshal([]string(c))
}

func (c *CalendarSelection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "all" || s == "" {
			*c = nil
			return nil
		}
		*c = CalendarSelection{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*c = list
	return nil
}

// WeekFile is the per-ISO-week JSON document written by the extractor.
type WeekFile struct {
	Week              string            `json:"week"`
	Start             string            `json:"start"`
	End               string            `json:"end"`
	Events            []Event           `json:"events"`
	Count             int               `json:"count"`
	Source            string            `json:"source"`
	Calendars         CalendarSelection `json:"calendars"`
	ExcludedCalendars []string          `json:"excluded_calendars"`
}

// Duplicate is a repeat of an already archived event that could not be
// explained by overlapping week fetches.
type Duplicate struct {
	Title         string `json:"title"`
	Start         string `json:"start"`
	End           string `json:"end"`
	FirstSeenFile string `json:"first_seen_file"`
	CurrentFile   string `json:"current_file"`
}
