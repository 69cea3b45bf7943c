package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/scholar-cli/internal/fields"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Manage the research field taxonomy and expertise",
}

// -- fields seed --

var fieldsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the field taxonomy and its keywords",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("taxonomy")
		if path == "" {
			path = cfg.Scoring.TaxonomyPath
		}
		tax, err := fields.LoadTaxonomy(path)
		if err != nil {
			return err
		}

		env, err := initStores(cmd.Context(), "fields")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := fields.SeedTaxonomy(cmd.Context(), env.Fields, tax)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

// -- fields classify --

var fieldsClassifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Score researchers' field expertise from their publications",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initStores(cmd.Context(), "fields")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		c := env.classifier(concurrency)
		if id, _ := cmd.Flags().GetInt64("researcher"); id > 0 {
			scores, err := c.ExpertiseScores(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(scores)
		}

		sum, err := c.ClassifyAll(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(sum)
	},
}

// -- fields keywords --

var fieldsKeywordsCmd = &cobra.Command{
	Use:   "keywords <researcher-id>",
	Short: "Show a researcher's strongest publication keywords",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		env, err := initStores(cmd.Context(), "fields")
		if err != nil {
			return err
		}
		defer env.Close()

		kws, err := env.classifier(1).Keywords(cmd.Context(), id)
		if err != nil {
			return err
		}
		if len(kws) == 0 {
			fmt.Fprintln(os.Stderr, "No keywords found.")
			return nil
		}
		formatKeywords(os.Stdout, kws)
		return nil
	},
}

// -- fields suggest --

var fieldsSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest new fields and keyword relationships missing from the taxonomy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initStores(cmd.Context(), "fields")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		s, err := env.classifier(concurrency).Suggest(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(s)
	},
}

func formatKeywords(out io.Writer, kws []fields.KeywordScore) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEYWORD\tSCORE\tCOUNT")
	_, _ = fmt.Fprintln(w, "-------\t-----\t-----")
	for _, k := range kws {
		_, _ = fmt.Fprintf(w, "%s\t%.0f\t%d\n", k.Keyword, k.Score, k.Count)
	}
	_ = w.Flush()
}

func init() {
	fieldsSeedCmd.Flags().String("taxonomy", "", "taxonomy YAML file (default from config, built-in when missing)")
	fieldsClassifyCmd.Flags().Int64("researcher", 0, "classify a single researcher")
	fieldsClassifyCmd.Flags().Int("concurrency", 4, "researchers processed in parallel")
	fieldsSuggestCmd.Flags().Int("concurrency", 4, "researchers processed in parallel")

	fieldsCmd.AddCommand(fieldsSeedCmd, fieldsClassifyCmd, fieldsKeywordsCmd, fieldsSuggestCmd)
	rootCmd.AddCommand(fieldsCmd)
}
