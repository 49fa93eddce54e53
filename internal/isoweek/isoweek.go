// Package isoweek handles ISO-8601 week labels of the form YYYY-Www.
package isoweek

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Week is a parsed ISO week label.
type Week struct {
	Year int
	Num  int
}

func (w Week) String() string {
	return fmt.Sprintf("%d-W%02d", w.Year, w.Num)
}

// Label returns the ISO week label of t's calendar date.
func Label(t time.Time) string {
	y, w := t.ISOWeek()
	return Week{Year: y, Num: w}.String()
}

var labelRe = regexp.MustCompile(`^(\d{4})-W(\d{2})`)

// Parse accepts "2025-W02" and the file-stem form "week-2025-W02". Only the
// leading label is inspected, so "week-2025-W02-icalbuddy" parses too.
func Parse(label string) (Week, error) {
	txt := strings.TrimPrefix(label, "week-")
	m := labelRe.FindStringSubmatch(txt)
	if m == nil {
		return Week{}, fmt.Errorf("invalid week label %q", label)
	}
	y, _ := strconv.Atoi(m[1])
	n, _ := strconv.Atoi(m[2])
	return Week{Year: y, Num: n}, nil
}

// ParseStrict validates that the label names a real ISO week.
func ParseStrict(label string) (Week, error) {
	w, err := Parse(label)
	if err != nil {
		return Week{}, err
	}
	if w.String() != strings.TrimPrefix(label, "week-") {
		return Week{}, fmt.Errorf("invalid week label %q", label)
	}
	if w.Num < 1 || w.Num > 53 || Label(Monday(w, time.UTC)) != w.String() {
		return Week{}, fmt.Errorf("week %s does not exist", w)
	}
	return w, nil
}

// Adjacent reports whether two labels name consecutive weeks: neighbours in
// the same year, or week 52/53 of one year next to week 1 of the following
// year (in either order). Unparseable labels are never adjacent.
func Adjacent(a, b string) bool {
	wa, err := Parse(a)
	if err != nil {
		return false
	}
	wb, err := Parse(b)
	if err != nil {
		return false
	}
	if wa.Year == wb.Year {
		d := wa.Num - wb.Num
		return d == 1 || d == -1
	}
	if wa.Year+1 == wb.Year && (wa.Num == 52 || wa.Num == 53) && wb.Num == 1 {
		return true
	}
	if wb.Year+1 == wa.Year && (wb.Num == 52 || wb.Num == 53) && wa.Num == 1 {
		return true
	}
	return false
}

// Monday returns midnight of the Monday starting week w in loc.
func Monday(w Week, loc *time.Location) time.Time {
	// Jan 4th is always in week 1.
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7
	week1 := jan4.AddDate(0, 0, -offset)
	return week1.AddDate(0, 0, (w.Num-1)*7)
}

// StartOfWeek returns midnight of the Monday on or before t, in t's zone.
func StartOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Mondays lists the week starts touching [from, to], oldest first.
func Mondays(from, to time.Time) ([]time.Time, error) {
	start := StartOfWeek(from)
	if to.Before(start) {
		return nil, fmt.Errorf("range end %s is before %s", to.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Until:     to,
		Byweekday: []rrule.Weekday{rrule.MO},
	})
	if err != nil {
		return nil, fmt.Errorf("build weekly rule: %w", err)
	}
	return r.All(), nil
}
