// Package datespan resolves the free-text date/time fragments printed by the
// calendar tool ("2025-01-05 09:00 - 10:30", "today at 12:00 - 13:00",
// "2025-01-05") into timezone-aware instants.
package datespan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Span is a resolved fragment.
type Span struct {
	Start  time.Time
	End    time.Time
	AllDay bool
}

// UnparseableError reports a fragment that matches no supported shape or
// whose date/time tokens do not resolve.
type UnparseableError struct {
	Fragment string
	Reason   string
}

func (e *UnparseableError) Error() string {
	return fmt.Sprintf("unparseable date fragment %q: %s", e.Fragment, e.Reason)
}

var localZone = sync.OnceValue(func() *time.Location {
	name, offset := time.Now().Zone()
	return time.FixedZone(name, offset)
})

// LocalZone is the system offset captured on first use. Every event of a
// process shares it; there is no per-event zone negotiation.
func LocalZone() *time.Location {
	return localZone()
}

const (
	datePattern = `(\S+)`
	timePattern = `(\d{1,2}:\d{2})`
	atPattern   = `(?:at\s+)?`
)

var (
	// <date> [at] HH:MM - [<date> [at]] HH:MM
	rangeRe = regexp.MustCompile(`(?i)^` + datePattern + `\s+` + atPattern + timePattern +
		`\s*-\s*(?:` + datePattern + `\s+` + atPattern + `)?` + timePattern + `$`)
	// <date> [at] HH:MM
	pointRe = regexp.MustCompile(`(?i)^` + datePattern + `\s+` + atPattern + timePattern + `$`)
	// <date>
	dayRe = regexp.MustCompile(`^` + datePattern + `$`)
)

// Resolver turns fragments into spans relative to fixed reference dates.
type Resolver struct {
	loc       *time.Location
	today     time.Time
	yesterday time.Time
}

// NewResolver builds a Resolver whose "today" is now's calendar date in loc.
// A nil loc means LocalZone().
func NewResolver(now time.Time, loc *time.Location) *Resolver {
	if loc == nil {
		loc = LocalZone()
	}
	n := now.In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	return &Resolver{
		loc:       loc,
		today:     today,
		yesterday: today.AddDate(0, 0, -1),
	}
}

// Location is the zone attached to every resolved instant.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve applies, in order: explicit time range, single point in time,
// whole day. The first shape that matches decides; a matching shape with a
// bad token fails the fragment rather than falling through.
func (r *Resolver) Resolve(fragment string) (Span, error) {
	frag := strings.Join(strings.Fields(fragment), " ")
	if frag == "" {
		return Span{}, &UnparseableError{Fragment: fragment, Reason: "empty"}
	}

	if m := rangeRe.FindStringSubmatch(frag); m != nil {
		return r.resolveRange(fragment, m[1], m[2], m[3], m[4])
	}
	if m := pointRe.FindStringSubmatch(frag); m != nil {
		day, err := r.resolveDate(m[1])
		if err != nil {
			return Span{}, &UnparseableError{Fragment: fragment, Reason: err.Error()}
		}
		at, err := r.combine(day, m[2])
		if err != nil {
			return Span{}, &UnparseableError{Fragment: fragment, Reason: err.Error()}
		}
		return Span{Start: at, End: at}, nil
	}
	if m := dayRe.FindStringSubmatch(frag); m != nil {
		day, err := r.resolveDate(m[1])
		if err != nil {
			return Span{}, &UnparseableError{Fragment: fragment, Reason: err.Error()}
		}
		return Span{
			Start:  day,
			End:    time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, r.loc),
			AllDay: true,
		}, nil
	}
	return Span{}, &UnparseableError{Fragment: fragment, Reason: "no supported shape"}
}

func (r *Resolver) resolveRange(fragment, d1, t1, d2, t2 string) (Span, error) {
	startDay, err := r.resolveDate(d1)
	if err != nil {
		return Span{}, &UnparseableError{Fragment: fragment, Reason: err.Error()}
	}
	endDay := startDay
	if d2 != "" {
		endDay, err = r.resolveDate(d2)
		if err != nil {
			return Span{}, &UnparseableError{Fragment: fragment, Reason: err.Error()}
		}
	}
	start, err := r.combine(startDay, t1)
	if err != nil {
		return Span{}, &UnparseableError{Fragment: fragment, Reason: err.Error()}
	}
	end, err := r.combine(endDay, t2)
	if err != nil {
		return Span{}, &UnparseableError{Fragment: fragment, Reason: err.Error()}
	}
	return Span{Start: start, End: end}, nil
}

// resolveDate maps today/yesterday to the reference dates and otherwise
// expects YYYY-MM-DD.
func (r *Resolver) resolveDate(token string) (time.Time, error) {
	switch strings.ToLower(token) {
	case "today":
		return r.today, nil
	case "yesterday":
		return r.yesterday, nil
	}
	d, err := time.ParseInLocation("2006-01-02", token, r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q", token)
	}
	return d, nil
}

func (r *Resolver) combine(day time.Time, clock string) (time.Time, error) {
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok {
		return time.Time{}, fmt.Errorf("bad time %q", clock)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return time.Time{}, fmt.Errorf("bad time %q", clock)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return time.Time{}, fmt.Errorf("bad time %q", clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, r.loc), nil
}
