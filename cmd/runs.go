package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/scholar-cli/internal/ingest"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the ingest run ledger",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent ingest runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initStores(cmd.Context(), "runs")
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := env.Runs.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recent ingest runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initStores(cmd.Context(), "runs")
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := env.Runs.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "max number of runs to display")
	runsStatsCmd.Flags().Int("limit", 100, "number of recent runs to summarize")

	runsCmd.AddCommand(runsListCmd, runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats aggregates a set of runs.
type runStats struct {
	Runs       int
	Completed  int
	Failed     int
	Running    int
	Seeds      int
	SeedsOK    int
	SeedsBad   int
	AvgDurSecs float64
}

func computeRunStats(runs []ingest.Run) runStats {
	var s runStats
	s.Runs = len(runs)

	var total time.Duration
	var finished int
	for _, r := range runs {
		switch r.Status {
		case ingest.RunCompleted:
			s.Completed++
		case ingest.RunFailed:
			s.Failed++
		default:
			s.Running++
		}
		s.Seeds += r.Total
		s.SeedsOK += r.Succeeded
		s.SeedsBad += r.Failed
		if r.FinishedAt != nil {
			total += r.FinishedAt.Sub(r.StartedAt)
			finished++
		}
	}
	if finished > 0 {
		s.AvgDurSecs = total.Seconds() / float64(finished)
	}
	return s
}

func formatRunsList(out io.Writer, runs []ingest.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSEEDS\tOK\tFAILED\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t-----\t--\t------\t-------\t--------")
	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID.String()),
			r.Status,
			r.Total,
			r.Succeeded,
			r.Failed,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Runs:\t%d\n", s.Runs)
	_, _ = fmt.Fprintf(w, "  Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "  Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "  Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Seeds:\t%d\n", s.Seeds)
	_, _ = fmt.Fprintf(w, "  Succeeded:\t%d\n", s.SeedsOK)
	_, _ = fmt.Fprintf(w, "  Failed:\t%d\n", s.SeedsBad)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
