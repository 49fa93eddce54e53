package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"weekcal/internal/archive"
	"weekcal/internal/ics"
	"weekcal/internal/jsonfile"
	appLog "weekcal/internal/log"
)

var exportICSCmd = &cobra.Command{
	Use:   "export-ics",
	Short: "Export an archive as an iCalendar file",
	Long:  "Read archive chunk files (default the all-<year> archive of archive_dir) and write them as one VCALENDAR with stable event UIDs.",
	RunE:  runExportICS,
}

var (
	exportArchives []string
	exportYear     int
	exportOutput   string
)

func init() {
	exportICSCmd.Flags().StringSliceVar(&exportArchives, "archive", nil, "Archive JSON file(s), in order (default the all-<year> chunks)")
	exportICSCmd.Flags().IntVar(&exportYear, "year", 0, "Archive year used for defaults (default current year)")
	exportICSCmd.Flags().StringVar(&exportOutput, "output", "", "ICS path (default <archive_dir>/all-<year>.ics)")

	rootCmd.AddCommand(exportICSCmd)
}

func runExportICS(cmd *cobra.Command, _ []string) error {
	year := exportYear
	if year == 0 {
		year = time.Now().Year()
	}
	paths := exportArchives
	if len(paths) == 0 {
		base := filepath.Join(cfg.ArchiveDir, fmt.Sprintf("all-%d.json", year))
		paths = archive.ExistingChunks(base)
		if len(paths) == 0 {
			return fmt.Errorf("no archive found at %s; run build-archive first", base)
		}
	}
	output := exportOutput
	if output == "" {
		output = filepath.Join(cfg.ArchiveDir, fmt.Sprintf("all-%d.ics", year))
	}
	return exportICS(paths, output, time.Now(), cmd.OutOrStdout(), logger)
}

func exportICS(paths []string, output string, stamp time.Time, out io.Writer, l *appLog.Logger) error {
	events, err := ics.LoadArchive(paths...)
	if err != nil {
		return err
	}
	res, err := ics.Export(events, ics.ExportOptions{Stamp: stamp, Log: l})
	if err != nil {
		return err
	}
	if err := jsonfile.WriteFile(output, []byte(res.Body)); err != nil {
		return fmt.Errorf("write ics: %w", err)
	}

	// Every exported VEVENT must parse back.
	back, err := ics.ParseEvents(strings.NewReader(res.Body), nil, l)
	if err != nil {
		return fmt.Errorf("read back ics: %w", err)
	}
	if len(back) != res.Exported {
		l.Warn("ics read-back mismatch", "exported", res.Exported, "read_back", len(back), "path", output)
	}
	fmt.Fprintf(out, "wrote %s (%d events, %d skipped, %d read back)\n", output, res.Exported, res.Skipped, len(back))
	return nil
}
