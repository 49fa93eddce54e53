package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"weekcal/internal/isoweek"
	"weekcal/internal/jsonfile"
	"weekcal/internal/weekview"
)

var readWeekCmd = &cobra.Command{
	Use:   "read-week",
	Short: "Convert a week file into the day/week view",
	Long:  "Read week-YYYY-Www.json (or the -icalbuddy variant), normalize its events into sorted day/week rows and write normalized-week-YYYY-Www.json.",
	RunE:  runReadWeek,
}

var (
	readWeekLabel  string
	readWeekDay    string
	readWeekInput  string
	readWeekOutput string
	readWeekTable  bool
)

func init() {
	readWeekCmd.Flags().StringVar(&readWeekLabel, "week", "", "ISO week such as 2025-W50 (default current week)")
	readWeekCmd.Flags().StringVar(&readWeekDay, "day", "", "Day shown in the day view, YYYY-MM-DD (default Monday)")
	readWeekCmd.Flags().StringVar(&readWeekInput, "input", "", "Week file to read (default looked up in weeks_dir)")
	readWeekCmd.Flags().StringVar(&readWeekOutput, "output", "", "Output path (default <weeks_dir>/normalized-week-<week>.json)")
	readWeekCmd.Flags().BoolVar(&readWeekTable, "table", false, "Also print the week as a table")

	rootCmd.AddCommand(readWeekCmd)
}

type readWeekOptions struct {
	Week     isoweek.Week
	Day      string
	WeeksDir string
	Input    string
	Output   string
	Table    bool
}

func runReadWeek(cmd *cobra.Command, _ []string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	var week isoweek.Week
	if readWeekLabel == "" {
		week, err = isoweek.Parse(isoweek.Label(time.Now().In(zoneOrLocal(loc))))
	} else {
		week, err = isoweek.ParseStrict(readWeekLabel)
	}
	if err != nil {
		return fmt.Errorf("--week must look like 2025-W50: %w", err)
	}
	if _, err := parseDay("day", readWeekDay, loc); err != nil {
		return err
	}

	return readWeek(readWeekOptions{
		Week:     week,
		Day:      readWeekDay,
		WeeksDir: cfg.WeeksDir,
		Input:    readWeekInput,
		Output:   readWeekOutput,
		Table:    readWeekTable,
	}, cmd.OutOrStdout())
}

func readWeek(opts readWeekOptions, out io.Writer) error {
	view, err := weekview.Load(opts.WeeksDir, opts.Week, opts.Day, opts.Input)
	if err != nil {
		return err
	}

	output := opts.Output
	if output == "" {
		output = filepath.Join(opts.WeeksDir, "normalized-week-"+opts.Week.String()+".json")
	}
	if err := jsonfile.Write(output, view); err != nil {
		return fmt.Errorf("write view: %w", err)
	}

	if opts.Table {
		fmt.Fprint(out, weekview.RenderTable(view.Week))
	}
	fmt.Fprintf(out, "wrote %s (%d events)\n", output, view.Meta.EventCount)
	return nil
}
