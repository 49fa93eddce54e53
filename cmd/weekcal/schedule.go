package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weekcal/internal/extract"
	"weekcal/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Re-fetch the current week on the configured cron schedule",
	Long:  "Fetch the current ISO week once, then again on every tick of the config refresh spec until interrupted.",
	RunE:  runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	s, err := schedule.New(
		newExtractor(cfg, logger, loc, nil),
		cfg.RefreshCron,
		zoneOrLocal(loc),
		extract.Request{
			IncludeCalendars: cfg.IncludeCalendars,
			ExcludeCalendars: cfg.ExcludeCalendars,
		},
		logger,
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}
