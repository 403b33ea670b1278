// Package cli implements the "stratalog filter" subcommand tree.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// NewFilterCommand returns the "filter" command with all subcommands wired in.
func NewFilterCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Build and scan probabilistic filter packs",
		Long:  "Bundle per-archive filter envelopes into packs and scan them to prune archives that cannot match a query.",
	}
	cmd.AddCommand(
		newPackCmd(logger),
		newScanCmd(logger),
	)
	return cmd
}
