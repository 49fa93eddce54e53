// Package ics converts archived events to and from iCalendar.
package ics

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

// ProductID is written as PRODID of every exported calendar.
const ProductID = "-//weekcal//archive export//EN"

// uidNamespace scopes the name-based UIDs so re-exports keep the same ids.
var uidNamespace = uuid.MustParse("6f1c3a52-7f0e-4b8e-9a36-2d5c0b6e4f11")

// ExportOptions tunes Export.
type ExportOptions struct {
	// Stamp is written as DTSTAMP on every event; zero means now.
	Stamp time.Time
	Log   *appLog.Logger
}

// ExportResult reports what Export did.
type ExportResult struct {
	Body     string
	Exported int
	Skipped  int
}

// UID returns the stable event UID derived from the dedup key.
func UID(ev model.Event) string {
	return uuid.NewSHA1(uidNamespace, []byte(ev.Key().String())).String() + "@weekcal"
}

// Export renders events as a VCALENDAR. Events whose start or end cannot be
// parsed are skipped. All-day events become DATE values with an exclusive
// end the day after.
func Export(events []model.Event, opts ExportOptions) (*ExportResult, error) {
	logger := opts.Log
	if logger == nil {
		logger = appLog.Discard()
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	res := &ExportResult{}
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		start, err := ev.StartTime()
		if err != nil {
			logger.Debug("ics export skipped event", "title", ev.Title, "reason", "bad start")
			res.Skipped++
			continue
		}
		end, err := ev.EndTime()
		if err != nil {
			logger.Debug("ics export skipped event", "title", ev.Title, "reason", "bad end")
			res.Skipped++
			continue
		}

		uid := UID(ev)
		if seen[uid] {
			res.Skipped++
			continue
		}
		seen[uid] = true

		ve := cal.AddEvent(uid)
		ve.SetDtStampTime(stamp)
		if ev.AllDay {
			ve.SetAllDayStartAt(start)
			endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
			ve.SetAllDayEndAt(endDay.AddDate(0, 0, 1))
		} else {
			ve.SetStartAt(start)
			ve.SetEndAt(end)
		}
		ve.SetSummary(ev.Title)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Notes != "" {
			ve.SetDescription(ev.Notes)
		}
		if ev.Calendar != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, ev.Calendar)
		}
		res.Exported++
	}

	res.Body = cal.Serialize()
	logger.Info("ics export completed", "exported", res.Exported, "skipped", res.Skipped)
	return res, nil
}

// LoadArchive reads and concatenates archive chunk files in the given order.
func LoadArchive(paths ...string) ([]model.Event, error) {
	var all []model.Event
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var chunk []model.Event
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil, fmt.Errorf("decode archive %s: %w", p, err)
		}
		all = append(all, chunk...)
	}
	return all, nil
}
