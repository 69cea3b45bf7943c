package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/scholar-cli/internal/export"
)

var errMissingBucket = eris.New("export: export.bucket is required for --s3 (SCHOLAR_EXPORT_BUCKET)")

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export researcher profiles as JSON",
	Long:  "Writes one JSON document with every researcher's identifiers, metrics and field expertise to a local directory, or to S3 when --s3 is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initStores(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		var sink export.Sink
		if toS3, _ := cmd.Flags().GetBool("s3"); toS3 {
			if cfg.Export.Bucket == "" {
				return errMissingBucket
			}
			client, err := export.NewS3Client(ctx, cfg.Export)
			if err != nil {
				return err
			}
			sink = export.NewS3Sink(client, cfg.Export.Bucket, cfg.Export.Prefix)
		} else {
			dir, _ := cmd.Flags().GetString("dir")
			sink = export.FileSink{Dir: dir}
		}

		facultyOnly, _ := cmd.Flags().GetBool("faculty")
		res, err := export.NewExporter(env.Researchers, env.Fields, env.Publications, sink).Export(ctx, facultyOnly)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	exportCmd.Flags().String("dir", "exports", "local output directory")
	exportCmd.Flags().Bool("s3", false, "upload to the configured S3 bucket")
	exportCmd.Flags().Bool("faculty", false, "only export faculty")
	rootCmd.AddCommand(exportCmd)
}
