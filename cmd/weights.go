package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/scholar-cli/internal/config"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Manage the scoring weights document",
}

var weightsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default scoring weights",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("weights"); err != nil {
			return err
		}
		path := cfg.Scoring.WeightsPath
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return eris.Errorf("weights: %s already exists, pass --force to overwrite", path)
		}
		if err := config.WriteWeights(path, config.DefaultWeights()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var weightsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective scoring weights",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w, err := config.LoadWeights(cfg.Scoring.WeightsPath)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(w); err != nil {
			return eris.Wrap(err, "weights: encode")
		}
		return enc.Close()
	},
}

func init() {
	weightsInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	weightsCmd.AddCommand(weightsInitCmd, weightsShowCmd)
	rootCmd.AddCommand(weightsCmd)
}
