package archive

import (
	"fmt"
	"strings"
	"time"

	"weekcal/internal/model"
)

// ReportInput is everything the dedup review needs.
type ReportInput struct {
	Year             int
	GeneratedAt      time.Time
	Outputs          []string
	ExcludeCalendars []string
	Duplicates       []model.Duplicate
}

// RenderReport renders the markdown dedup review. Duplicates are listed in
// detection order, which follows week-file order and is deterministic.
func RenderReport(in ReportInput) string {
	exclude := "none"
	if len(in.ExcludeCalendars) > 0 {
		exclude = strings.Join(in.ExcludeCalendars, ", ")
	}

	lines := []string{
		"# Calendar Dedup Review",
		fmt.Sprintf("- year: %d", in.Year),
		fmt.Sprintf("- generated: %s", in.GeneratedAt.Format("2006-01-02T15:04:05")),
		fmt.Sprintf("- outputs: %s", strings.Join(in.Outputs, ", ")),
		fmt.Sprintf("- exclude_calendars: %s", exclude),
		"",
	}

	if len(in.Duplicates) == 0 {
		lines = append(lines,
			"## No duplicates detected (key: title+start+end)",
			"Nothing to review.",
		)
		return strings.Join(lines, "\n")
	}

	lines = append(lines, fmt.Sprintf("## Duplicates detected (title+start+end): %d", len(in.Duplicates)))
	for _, d := range in.Duplicates {
		lines = append(lines, fmt.Sprintf("- %s | %s → %s | first: %s | dup: %s",
			d.Title, d.Start, d.End, d.FirstSeenFile, d.CurrentFile))
	}
	lines = append(lines,
		"",
		"Confirm whether each entry is the same event; fix the source week files or keep the repeat.",
	)
	return strings.Join(lines, "\n")
}
