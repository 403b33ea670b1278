package cli

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"stratalog/internal/search"
)

func newScanCmd(logger *slog.Logger) *cobra.Command {
	var (
		packPath   string
		archives   string
		query      string
		outputJSON string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a filter pack for query terms",
		Long:  "Extract the query's conjunctive terms and report which candidate archives could possibly contain them.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := search.ScanPack(packPath, splitArchives(archives), query, logger)
			if err != nil {
				return err
			}
			return emitJSON(outputJSON, result)
		},
	}

	cmd.Flags().StringVar(&packPath, "pack-path", "", "path to the filter pack")
	cmd.Flags().StringVar(&archives, "archives", "", "comma-separated candidate archive ids")
	cmd.Flags().StringVar(&query, "query", "", "KQL-style query")
	cmd.Flags().StringVar(&outputJSON, "output-json", "", "path for the JSON scan result")
	_ = cmd.MarkFlagRequired("pack-path")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("output-json")

	return cmd
}

// splitArchives parses the --archives flag: comma-separated ids, blanks
// and surrounding whitespace dropped.
func splitArchives(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}
