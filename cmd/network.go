package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/publication"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Export the collaboration network as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initStores(cmd.Context(), "network")
		if err != nil {
			return err
		}
		defer env.Close()

		q := publication.NetworkQuery{
			MaxDepth:          env.Weights.NetworkParams.MaxDepth,
			MinCollaborations: env.Weights.NetworkParams.MinCollaborations,
		}
		q.Root, _ = cmd.Flags().GetInt64("root")
		if cmd.Flags().Changed("depth") {
			q.MaxDepth, _ = cmd.Flags().GetInt("depth")
		}
		if cmd.Flags().Changed("min") {
			q.MinCollaborations, _ = cmd.Flags().GetInt("min")
		}

		net, err := publication.BuildNetwork(cmd.Context(), env.Publications, q)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return printJSON(net)
		}
		data, err := json.MarshalIndent(net, "", "  ")
		if err != nil {
			return eris.Wrap(err, "network: marshal")
		}
		if err := os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec
			return eris.Wrapf(err, "network: write %s", out)
		}
		zap.L().Info("network exported",
			zap.String("path", out),
			zap.Int("nodes", len(net.Nodes)),
			zap.Int("edges", len(net.Edges)),
		)
		return nil
	},
}

func init() {
	networkCmd.Flags().Int64("root", 0, "expand from this researcher only")
	networkCmd.Flags().Int("depth", 0, "hops from --root (default from weights)")
	networkCmd.Flags().Int("min", 0, "minimum shared publications per edge (default from weights)")
	networkCmd.Flags().String("out", "", "write to a file instead of stdout")
	rootCmd.AddCommand(networkCmd)
}
