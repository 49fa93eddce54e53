package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"weekcal/internal/archive"
	appLog "weekcal/internal/log"
)

var buildArchiveCmd = &cobra.Command{
	Use:   "build-archive",
	Short: "Merge week files into a deduplicated yearly archive",
	Long:  "Merge every week-YYYY-Www.json of the weeks dir into all-<year>.json (split into at most 9 chunks by --max-mb) and write dedup-review.md. Duplicates are reported, never fatal.",
	RunE:  runBuildArchive,
}

var (
	archiveYear        int
	archiveWeeksDir    string
	archiveOutput      string
	archiveReport      string
	archiveMaxMB       float64
	archiveExclude     string
	archiveGeneratedAt string
)

func init() {
	buildArchiveCmd.Flags().IntVar(&archiveYear, "year", 0, "Year to archive (default current year)")
	buildArchiveCmd.Flags().StringVar(&archiveWeeksDir, "weeks-dir", "", "Directory of week files (default config weeks_dir)")
	buildArchiveCmd.Flags().StringVar(&archiveOutput, "output", "", "Archive path (default <archive_dir>/all-<year>.json)")
	buildArchiveCmd.Flags().StringVar(&archiveReport, "dedup-report", "", "Review report path (default <archive_dir>/dedup-review.md)")
	buildArchiveCmd.Flags().Float64Var(&archiveMaxMB, "max-mb", 0, "Chunk size threshold in MiB of written JSON (default config max_mb)")
	buildArchiveCmd.Flags().StringVar(&archiveExclude, "exclude-calendars", "", "Drop calendars whose name contains one of these (comma separated)")
	buildArchiveCmd.Flags().StringVar(&archiveGeneratedAt, "generated-at", "", "RFC 3339 timestamp for the report header (default now)")

	rootCmd.AddCommand(buildArchiveCmd)
}

// buildArchiveOptions is a fully resolved build-archive invocation.
type buildArchiveOptions struct {
	Year        int
	WeeksDir    string
	Output      string
	Report      string
	MaxMB       float64
	Exclude     []string
	GeneratedAt time.Time
}

func runBuildArchive(cmd *cobra.Command, _ []string) error {
	opts := buildArchiveOptions{
		Year:     archiveYear,
		WeeksDir: archiveWeeksDir,
		Output:   archiveOutput,
		Report:   archiveReport,
		MaxMB:    archiveMaxMB,
		Exclude:  listOrDefault(cmd, "exclude-calendars", archiveExclude, cfg.ExcludeCalendars),
	}
	if opts.Year == 0 {
		opts.Year = time.Now().Year()
	}
	if opts.WeeksDir == "" {
		opts.WeeksDir = cfg.WeeksDir
	}
	if opts.Output == "" {
		opts.Output = filepath.Join(cfg.ArchiveDir, fmt.Sprintf("all-%d.json", opts.Year))
	}
	if opts.Report == "" {
		opts.Report = filepath.Join(cfg.ArchiveDir, "dedup-review.md")
	}
	if opts.MaxMB <= 0 {
		opts.MaxMB = cfg.MaxMB
	}
	if archiveGeneratedAt != "" {
		t, err := time.Parse(time.RFC3339, archiveGeneratedAt)
		if err != nil {
			return fmt.Errorf("--generated-at must be RFC 3339: %w", err)
		}
		opts.GeneratedAt = t
	}
	return buildArchive(opts, cmd.OutOrStdout(), logger)
}

func buildArchive(opts buildArchiveOptions, out io.Writer, l *appLog.Logger) error {
	merged, err := archive.NewMerger(l).Merge(opts.Year, opts.WeeksDir, opts.Exclude)
	if err != nil {
		return err
	}

	w := archive.NewWriter(l)
	if !opts.GeneratedAt.IsZero() {
		w.Now = func() time.Time { return opts.GeneratedAt }
	}
	res, err := w.Write(archive.WriteRequest{
		Year:             opts.Year,
		Events:           merged.Events,
		Duplicates:       merged.Duplicates,
		Output:           opts.Output,
		ReportPath:       opts.Report,
		MaxMB:            opts.MaxMB,
		ExcludeCalendars: opts.Exclude,
	})
	if err != nil {
		return err
	}

	for _, p := range res.ChunkPaths {
		fmt.Fprintf(out, "wrote %s\n", p)
	}
	fmt.Fprintf(out, "%d events from %d week files (%d skipped), %d duplicates for review in %s\n",
		len(merged.Events), merged.FilesRead, merged.FilesSkipped, len(merged.Duplicates), res.ReportPath)
	return nil
}
