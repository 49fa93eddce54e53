// Package lineparse turns raw calendar-tool output lines into canonical
// events.
//
// Two line shapes are understood. The attributed shape is what the tool
// prints when asked for property output with a separator:
//
//	title|@|calendar|@|allday|@|datetime|@|location|@|notes
//
// The fallback shape is the tool's default bullet output collapsed on one
// line:
//
//	Lunch | 45min (Personal)@today at 12:00 - 13:00@Cafe@notes: nice
package lineparse

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"weekcal/internal/datespan"
	"weekcal/internal/model"
)

// DefaultDelimiter separates attributed fields.
const DefaultDelimiter = "|@|"

const attributedFields = 6

// ParsedLine is one of Attributed, Fallback or Unparseable.
type ParsedLine interface {
	isParsedLine()
}

// Attributed holds the six raw fields of a delimiter-separated line.
type Attributed struct {
	Title    string
	Calendar string
	AllDay   string
	DateTime string
	Location string
	Notes    string
}

// Fallback holds the pieces of an @-separated line after the title prefix
// has been stripped of its duration and calendar suffixes.
type Fallback struct {
	Title    string
	Calendar string
	DateTime string
	Location string
	Notes    string
}

// Unparseable is a line no shape accepted.
type Unparseable struct {
	Raw    string
	Reason string
}

func (Attributed) isParsedLine()  {}
func (Fallback) isParsedLine()    {}
func (Unparseable) isParsedLine() {}

// SkipError is returned for lines that do not produce an event.
type SkipError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skip line: %s: %v", e.Reason, e.Err)
	}
	return "skip line: " + e.Reason
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

// shapeMatcher returns ok=false when the line is not of its shape so the
// next matcher gets a chance.
type shapeMatcher func(line string) (ParsedLine, bool)

// Parser parses lines with a shared resolver.
type Parser struct {
	resolver  *datespan.Resolver
	delimiter string
	matchers  []shapeMatcher
}

// New returns a Parser. An empty delimiter means DefaultDelimiter.
func New(resolver *datespan.Resolver, delimiter string) *Parser {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	p := &Parser{resolver: resolver, delimiter: delimiter}
	p.matchers = []shapeMatcher{p.matchAttributed, matchFallback}
	return p
}

// Classify cleans a raw line and returns its shape.
func (p *Parser) Classify(raw string) ParsedLine {
	line := cleanLine(raw)
	if line == "" {
		return Unparseable{Raw: raw, Reason: "empty"}
	}
	for _, m := range p.matchers {
		if pl, ok := m(line); ok {
			return pl
		}
	}
	return Unparseable{Raw: raw, Reason: "no delimiter and no @ separator"}
}

// Parse returns the event for one line, or a *SkipError.
func (p *Parser) Parse(raw string) (model.Event, error) {
	switch pl := p.Classify(raw).(type) {
	case Attributed:
		span, err := p.resolver.Resolve(pl.DateTime)
		if err != nil {
			return model.Event{}, &SkipError{Raw: raw, Reason: "unresolvable datetime", Err: err}
		}
		return model.Event{
			Title:    pl.Title,
			Calendar: pl.Calendar,
			Start:    model.FormatTime(span.Start),
			End:      model.FormatTime(span.End),
			AllDay:   allDayFlag(pl.AllDay) || span.AllDay,
			Location: pl.Location,
			Notes:    pl.Notes,
		}, nil
	case Fallback:
		span, err := p.resolver.Resolve(pl.DateTime)
		if err != nil {
			return model.Event{}, &SkipError{Raw: raw, Reason: "unresolvable datetime", Err: err}
		}
		return model.Event{
			Title:    pl.Title,
			Calendar: pl.Calendar,
			Start:    model.FormatTime(span.Start),
			End:      model.FormatTime(span.End),
			AllDay:   span.AllDay,
			Location: pl.Location,
			Notes:    pl.Notes,
		}, nil
	case Unparseable:
		return model.Event{}, &SkipError{Raw: raw, Reason: pl.Reason}
	default:
		return model.Event{}, &SkipError{Raw: raw, Reason: fmt.Sprintf("unknown shape %T", pl)}
	}
}

// ParseAll parses lines in order. Skipped lines are returned alongside the
// events; one bad line never fails the batch.
func (p *Parser) ParseAll(lines []string) ([]model.Event, []*SkipError) {
	events := make([]model.Event, 0, len(lines))
	var skipped []*SkipError
	for _, raw := range lines {
		ev, err := p.Parse(raw)
		if err != nil {
			se, ok := err.(*SkipError)
			if !ok {
				se = &SkipError{Raw: raw, Reason: "parse failed", Err: err}
			}
			skipped = append(skipped, se)
			continue
		}
		events = append(events, ev)
	}
	return events, skipped
}

func (p *Parser) matchAttributed(line string) (ParsedLine, bool) {
	if !strings.Contains(line, p.delimiter) {
		return nil, false
	}
	parts := strings.Split(line, p.delimiter)
	for len(parts) < attributedFields {
		parts = append(parts, "")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return Attributed{
		Title:    parts[0],
		Calendar: parts[1],
		AllDay:   parts[2],
		DateTime: parts[3],
		Location: parts[4],
		Notes:    parts[5],
	}, true
}

var (
	calendarSuffixRe = regexp.MustCompile(`\s*\(([^()]*)\)\s*$`)
	// A duration token has at least one digit: "45min", "1h 30m", "45分钟".
	durationSuffixRe = regexp.MustCompile(`\s*\|[^|]*\d[^|]*$`)
	labelPrefixRe    = regexp.MustCompile(`(?i)^\s*(?:notes|url)\s*:\s*`)
)

func matchFallback(line string) (ParsedLine, bool) {
	prefix, rest, ok := strings.Cut(line, "@")
	if !ok {
		return nil, false
	}
	frags := strings.Split(rest, "@")

	title, calendar := splitTitlePrefix(prefix)

	trailing := make([]string, 0, len(frags)-1)
	for _, f := range frags[1:] {
		trailing = append(trailing, strings.TrimSpace(labelPrefixRe.ReplaceAllString(f, "")))
	}

	fb := Fallback{
		Title:    title,
		Calendar: calendar,
		DateTime: strings.TrimSpace(frags[0]),
	}
	if len(trailing) > 0 {
		fb.Location = trailing[0]
		fb.Notes = strings.Join(trailing[1:], "@")
	}
	return fb, true
}

// splitTitlePrefix strips "(Calendar)" and then "| duration" from the end of
// the title prefix.
func splitTitlePrefix(prefix string) (title, calendar string) {
	title = strings.TrimSpace(prefix)
	if m := calendarSuffixRe.FindStringSubmatchIndex(title); m != nil {
		calendar = strings.TrimSpace(title[m[2]:m[3]])
		title = strings.TrimSpace(title[:m[0]])
	}
	if loc := durationSuffixRe.FindStringIndex(title); loc != nil {
		title = strings.TrimSpace(title[:loc[0]])
	}
	return title, calendar
}

func allDayFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true":
		return true
	}
	return false
}

// cleanLine drops control characters and surrounding whitespace.
func cleanLine(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' {
			return -1
		}
		return r
	}, raw)
	return strings.TrimSpace(cleaned)
}
