package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/cache"
	"github.com/sells-group/scholar-cli/internal/researcher"
)

// cleanupReport counts what cleanup removed, or would remove on a dry run.
type cleanupReport struct {
	DryRun          bool   `json:"dry_run"`
	ApprovedMerges  int    `json:"approved_merges"`
	MergesExecuted  int    `json:"merges_executed"`
	MergesFailed    int    `json:"merges_failed"`
	Researchers     int64  `json:"researchers"`
	Fields          int64  `json:"fields"`
	CacheEntries    int    `json:"cache_entries"`
	CachePurgeError string `json:"cache_purge_error,omitempty"`
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove empty researchers and unused fields",
	Long:  "Executes approved merges, then removes researchers with no authorships and no expertise, fields nobody holds expertise in, and expired cache entries. Nothing is changed unless --execute is passed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		execute, _ := cmd.Flags().GetBool("execute")

		env, err := initStores(cmd.Context(), "cleanup")
		if err != nil {
			return err
		}
		defer env.Close()

		rep, err := runCleanup(cmd.Context(), env, !execute)
		if err != nil {
			return err
		}
		formatCleanup(os.Stdout, rep)
		return nil
	},
}

func runCleanup(ctx context.Context, env *storeEnv, dryRun bool) (*cleanupReport, error) {
	rep := &cleanupReport{DryRun: dryRun}

	approved, err := env.Researchers.MergeCandidates(ctx, researcher.CandidateApproved)
	if err != nil {
		return nil, err
	}
	rep.ApprovedMerges = len(approved)
	if !dryRun && len(approved) > 0 {
		sum, err := researcher.NewMerger(env.Researchers).ExecuteApproved(ctx)
		if err != nil {
			return nil, err
		}
		rep.MergesExecuted, rep.MergesFailed = sum.Executed, sum.Failed
	}

	if rep.Researchers, err = env.Researchers.DeleteEmpty(ctx, dryRun); err != nil {
		return nil, err
	}
	if rep.Fields, err = env.Fields.DeleteUnused(ctx, dryRun); err != nil {
		return nil, err
	}

	if !dryRun && cfg.Cache.Path != "" {
		if _, statErr := os.Stat(cfg.Cache.Path); statErr == nil {
			n, err := purgeCache(ctx, cfg.Cache.Path)
			if err != nil {
				zap.L().Warn("cache purge failed", zap.Error(err))
				rep.CachePurgeError = err.Error()
			}
			rep.CacheEntries = n
		}
	}
	return rep, nil
}

func purgeCache(ctx context.Context, path string) (int, error) {
	c, err := cache.Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer c.Close() //nolint:errcheck
	return c.Purge(ctx)
}

func formatCleanup(out io.Writer, r *cleanupReport) {
	verb := "Removed"
	if r.DryRun {
		verb = "Would remove"
		_, _ = fmt.Fprintln(out, "Dry run: pass --execute to apply.")
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if r.DryRun {
		_, _ = fmt.Fprintf(w, "Approved merges pending execution:\t%d\n", r.ApprovedMerges)
	} else {
		_, _ = fmt.Fprintf(w, "Merges executed:\t%d\n", r.MergesExecuted)
		_, _ = fmt.Fprintf(w, "Merges failed:\t%d\n", r.MergesFailed)
	}
	_, _ = fmt.Fprintf(w, "%s researchers:\t%d\n", verb, r.Researchers)
	_, _ = fmt.Fprintf(w, "%s fields:\t%d\n", verb, r.Fields)
	if !r.DryRun {
		_, _ = fmt.Fprintf(w, "Expired cache entries:\t%d\n", r.CacheEntries)
	}
	_ = w.Flush()
}

func init() {
	cleanupCmd.Flags().Bool("execute", false, "apply the cleanup instead of reporting it")
	rootCmd.AddCommand(cleanupCmd)
}
