package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"weekcal/internal/extract"
	"weekcal/internal/isoweek"
	appLog "weekcal/internal/log"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fetch every ISO week touching a date range",
	Long:  "Run fetch-week for each Monday from the week containing --from through --to. A failed week is logged and the rest still run.",
	RunE:  runBackfill,
}

var (
	backfillFrom string
	backfillTo   string
)

func init() {
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "First day YYYY-MM-DD (required)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "Last day YYYY-MM-DD (default today)")
	_ = backfillCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	from, err := parseDay("from", backfillFrom, loc)
	if err != nil {
		return err
	}
	to, err := parseDay("to", backfillTo, loc)
	if err != nil {
		return err
	}
	if to.IsZero() {
		to = time.Now().In(zoneOrLocal(loc))
	}

	// One run log for the whole range.
	runLog, err := appLog.NewFile(cfg.LogFile, appLog.LevelDebug)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer runLog.Close()

	base := extract.Request{
		IncludeCalendars: cfg.IncludeCalendars,
		ExcludeCalendars: cfg.ExcludeCalendars,
	}
	return backfill(cmd.Context(), newExtractor(cfg, logger, loc, runLog), base, from, to, cmd.OutOrStdout(), logger)
}

// weekFetcher is the part of *extract.Extractor backfill needs.
type weekFetcher interface {
	Extract(ctx context.Context, req extract.Request) (*extract.Result, error)
}

func backfill(ctx context.Context, f weekFetcher, base extract.Request, from, to time.Time, out io.Writer, l *appLog.Logger) error {
	mondays, err := isoweek.Mondays(from, to)
	if err != nil {
		return err
	}

	var errs []error
	total := 0
	for _, monday := range mondays {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := base
		req.Start = monday
		res, err := f.Extract(ctx, req)
		if err != nil {
			l.Error("backfill week failed", err, "start", monday.Format("2006-01-02"))
			errs = append(errs, fmt.Errorf("week of %s: %w", monday.Format("2006-01-02"), err))
			continue
		}
		total += res.Week.Count
		fmt.Fprintf(out, "wrote %s (%d events)\n", res.WeekPath, res.Week.Count)
	}
	fmt.Fprintf(out, "backfill: %d weeks, %d events, %d failed\n", len(mondays), total, len(errs))
	return errors.Join(errs...)
}
