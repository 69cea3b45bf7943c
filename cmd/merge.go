package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/scholar-cli/internal/researcher"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Review and execute duplicate-researcher merges",
	Long:  "Merge candidates are proposed when an ORCID is already held by another record. Candidates must be approved before they are executed.",
}

// -- merge list --

var mergeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List merge candidates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initStores(cmd.Context(), "merge")
		if err != nil {
			return err
		}
		defer env.Close()

		status, _ := cmd.Flags().GetString("status")
		if status == "all" {
			status = ""
		}
		list, err := env.Researchers.MergeCandidates(cmd.Context(), status)
		if err != nil {
			return eris.Wrap(err, "merge list")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No merge candidates found.")
			return nil
		}
		formatCandidates(os.Stdout, list)
		return nil
	},
}

// -- merge approve --

var mergeApproveCmd = &cobra.Command{
	Use:   "approve [candidate-id]",
	Short: "Approve a pending candidate, or every pending candidate above --min-confidence",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minConf, _ := cmd.Flags().GetFloat64("min-confidence")
		if len(args) == 0 && minConf <= 0 {
			return eris.New("merge approve: pass a candidate id or --min-confidence")
		}

		env, err := initStores(cmd.Context(), "merge")
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 0 {
			n, err := env.Researchers.ApprovePending(cmd.Context(), minConf)
			if err != nil {
				return err
			}
			fmt.Printf("approved %d candidates with confidence >= %.2f\n", n, minConf)
			return nil
		}

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := env.Researchers.ApproveMerge(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("candidate %d approved\n", id)
		return nil
	},
}

// -- merge reject --

var mergeRejectCmd = &cobra.Command{
	Use:   "reject <candidate-id>",
	Short: "Reject a pending or approved candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		env, err := initStores(cmd.Context(), "merge")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Researchers.RejectMerge(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("candidate %d rejected\n", id)
		return nil
	},
}

// -- merge execute --

var mergeExecuteCmd = &cobra.Command{
	Use:   "execute [candidate-id]",
	Short: "Execute one approved candidate, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initStores(cmd.Context(), "merge")
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 1 {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := env.Researchers.ExecuteMerge(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("candidate %d merged\n", id)
			return nil
		}

		sum, err := researcher.NewMerger(env.Researchers).ExecuteApproved(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(sum)
	},
}

func formatCandidates(out io.Writer, list []researcher.MergeCandidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPRIMARY\tSECONDARY\tREASON\tCONFIDENCE\tSTATUS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t---------\t------\t----------\t------\t-------")
	for _, c := range list {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%.2f\t%s\t%s\n",
			c.ID, c.PrimaryID, c.SecondaryID, c.Reason, c.Confidence, c.Status,
			c.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("invalid id %q", s)
	}
	return id, nil
}

func init() {
	mergeListCmd.Flags().String("status", researcher.CandidatePending, "pending, approved, completed, rejected or all")
	mergeApproveCmd.Flags().Float64("min-confidence", 0, "approve every pending candidate at or above this confidence")

	mergeCmd.AddCommand(mergeListCmd, mergeApproveCmd, mergeRejectCmd, mergeExecuteCmd)
	rootCmd.AddCommand(mergeCmd)
}
