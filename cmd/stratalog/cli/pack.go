package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"stratalog/internal/filterpack"
)

func newPackCmd(logger *slog.Logger) *cobra.Command {
	var (
		output     string
		manifest   string
		outputJSON string
	)

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Build a filter pack from a manifest",
		Long:  "Read a manifest of archive_id<TAB>filter_path lines and bundle the filter files into a single indexed pack.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := filterpack.ReadManifest(manifest)
			if err != nil {
				return err
			}
			result, err := filterpack.Build(output, entries, logger)
			if err != nil {
				return err
			}
			return emitJSON(outputJSON, result)
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "pack output path")
	cmd.Flags().StringVar(&manifest, "manifest", "", "manifest path, one archive_id<TAB>filter_path per line")
	cmd.Flags().StringVar(&outputJSON, "output-json", "", "path for the JSON build summary")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("manifest")
	_ = cmd.MarkFlagRequired("output-json")

	return cmd
}
