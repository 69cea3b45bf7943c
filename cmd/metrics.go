package main

import (
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Recompute field expertise, metrics and reputation",
	Long:  "Reclassifies every researcher's field expertise, then recomputes h-index, citations, publication counts and reputation scores. With --researcher only that researcher's metrics are refreshed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initStores(cmd.Context(), "metrics")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if id, _ := cmd.Flags().GetInt64("researcher"); id > 0 {
			snap, err := env.engine(1).UpdateResearcher(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(snap)
		}

		res, err := recompute(cmd.Context(), env, concurrency)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	metricsCmd.Flags().Int64("researcher", 0, "refresh a single researcher's metrics")
	metricsCmd.Flags().Int("concurrency", 4, "researchers processed in parallel")
	rootCmd.AddCommand(metricsCmd)
}
