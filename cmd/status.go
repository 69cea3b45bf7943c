package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/scholar-cli/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database counts and the last ingest run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initStores(cmd.Context(), "status")
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := monitoring.NewCollector(monitoring.NewPostgresCountStore(env.Pool), env.Runs, nil).Collect(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(snap)
		}
		formatStatus(os.Stdout, snap)
		return nil
	},
}

func formatStatus(out io.Writer, s *monitoring.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Researchers:\t%d\n", s.Researchers)
	_, _ = fmt.Fprintf(w, "  Faculty:\t%d\n", s.Faculty)
	_, _ = fmt.Fprintf(w, "Publications:\t%d\n", s.Publications)
	_, _ = fmt.Fprintf(w, "Fields:\t%d\n", s.Fields)
	_, _ = fmt.Fprintf(w, "Merge candidates pending:\t%d\n", s.PendingMerges)
	_, _ = fmt.Fprintf(w, "Merge candidates approved:\t%d\n", s.ApprovedMerges)
	if r := s.LastRun; r != nil {
		_, _ = fmt.Fprintf(w, "Last ingest:\t%s %s (%d/%d succeeded, %d failed)\n",
			truncateID(r.ID.String()), r.Status, r.Succeeded, r.Total, r.Failed)
		_, _ = fmt.Fprintf(w, "  Started:\t%s\n", r.StartedAt.Format(time.RFC3339))
	} else {
		_, _ = fmt.Fprintln(w, "Last ingest:\tnever")
	}
	_ = w.Flush()
}

func init() {
	statusCmd.Flags().Bool("json", false, "print the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}
