package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"weekcal/internal/jsonfile"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

const (
	// MaxChunks bounds the number of archive files; the last chunk absorbs
	// whatever remains.
	MaxChunks = 9

	// DefaultMaxMB is the default chunk size threshold.
	DefaultMaxMB = 5.0

	bytesPerMB = 1024 * 1024
)

// WriteRequest describes one archive build output.
type WriteRequest struct {
	Year             int
	Events           []model.Event
	Duplicates       []model.Duplicate
	Output           string
	ReportPath       string
	MaxMB            float64
	ExcludeCalendars []string
}

// WriteResult lists the files produced.
type WriteResult struct {
	ChunkPaths []string
	ReportPath string
}

// Writer serializes archives. Now stamps the report header and may be
// replaced to make builds reproducible.
type Writer struct {
	Now func() time.Time
	log *appLog.Logger
}

// NewWriter returns a Writer using the wall clock.
func NewWriter(logger *appLog.Logger) *Writer {
	if logger == nil {
		logger = appLog.Discard()
	}
	return &Writer{Now: time.Now, log: logger}
}

// Write splits the events into chunks, writes them and the dedup report.
// Nothing is written until every chunk has been serialized in memory.
func (w *Writer) Write(req WriteRequest) (*WriteResult, error) {
	if req.Output == "" {
		return nil, errors.New("archive output path is empty")
	}
	if req.ReportPath == "" {
		return nil, errors.New("dedup report path is empty")
	}
	maxMB := req.MaxMB
	if maxMB <= 0 {
		maxMB = DefaultMaxMB
	}

	chunks, err := SplitEvents(req.Events, maxMB)
	if err != nil {
		return nil, err
	}

	bodies := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		body, err := jsonfile.Indented(chunk)
		if err != nil {
			return nil, fmt.Errorf("encode chunk %d: %w", i+1, err)
		}
		bodies[i] = body
	}

	paths := ChunkPaths(req.Output, len(chunks))

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return nil, err
	}
	if err := removeStaleChunks(req.Output); err != nil {
		return nil, err
	}
	for i, p := range paths {
		if err := jsonfile.WriteFile(p, bodies[i]); err != nil {
			return nil, fmt.Errorf("write archive chunk: %w", err)
		}
	}

	report := RenderReport(ReportInput{
		Year:             req.Year,
		GeneratedAt:      w.Now(),
		Outputs:          paths,
		ExcludeCalendars: req.ExcludeCalendars,
		Duplicates:       req.Duplicates,
	})
	if err := jsonfile.WriteFile(req.ReportPath, []byte(report)); err != nil {
		return nil, fmt.Errorf("write dedup report: %w", err)
	}

	w.log.Info("archive written",
		"year", req.Year,
		"events", len(req.Events),
		"chunks", len(paths),
		"duplicates", len(req.Duplicates),
		"report", req.ReportPath,
	)
	return &WriteResult{ChunkPaths: paths, ReportPath: req.ReportPath}, nil
}

// SplitEvents groups events into at most MaxChunks chunks. A chunk is closed
// as soon as its on-disk (Indented) JSON encoding reaches maxMB; the final
// chunk takes every remaining event regardless of size. The encoded size is
// tracked incrementally: "[\n" + "  "-prefixed items joined by ",\n" + "\n]".
func SplitEvents(events []model.Event, maxMB float64) ([][]model.Event, error) {
	if len(events) == 0 {
		return [][]model.Event{{}}, nil
	}
	limit := maxMB * bytesPerMB

	const (
		brackets  = len("[\n") + len("\n]")
		indent    = len("  ")
		separator = len(",\n")
	)

	var chunks [][]model.Event
	current := make([]model.Event, 0)
	size := brackets
	for _, ev := range events {
		item, err := jsonfile.IndentedElem(ev)
		if err != nil {
			return nil, fmt.Errorf("encode event %q: %w", ev.Title, err)
		}
		if len(current) > 0 {
			size += separator
		}
		size += indent + len(item)
		current = append(current, ev)

		if float64(size) >= limit && len(chunks) < MaxChunks-1 {
			chunks = append(chunks, current)
			current = make([]model.Event, 0)
			size = brackets
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks, nil
}

// ChunkPaths returns output itself for a single chunk, otherwise
// <stem>-1<ext> ... <stem>-n<ext>.
func ChunkPaths(output string, n int) []string {
	if n <= 1 {
		return []string{output}
	}
	ext := filepath.Ext(output)
	stem := strings.TrimSuffix(output, ext)
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("%s-%d%s", stem, i+1, ext)
	}
	return paths
}

// removeStaleChunks deletes archive files from a previous build of the same
// output so single and chunked generations never coexist.
func removeStaleChunks(output string) error {
	for _, p := range append([]string{output}, ChunkPaths(output, MaxChunks)...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale archive %s: %w", p, err)
		}
	}
	return nil
}

// ExistingChunks returns the archive files present for output: output itself
// when a single-file archive exists, otherwise the numbered chunks in order.
func ExistingChunks(output string) []string {
	if _, err := os.Stat(output); err == nil {
		return []string{output}
	}
	var paths []string
	for _, p := range ChunkPaths(output, MaxChunks) {
		if _, err := os.Stat(p); err != nil {
			break
		}
		paths = append(paths, p)
	}
	return paths
}
