// Command stratalog is the archive filter toolchain: building filter
// packs from per-archive filter envelopes and scanning them to prune
// archives at query time.
//
// Logging:
//   - Base logger is created here and passed down via dependency injection
//   - Output goes to stderr as structured single-line records
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"stratalog/cmd/stratalog/cli"
	"stratalog/internal/logging"
)

var version = "dev"

func main() {
	logger := slog.New(logging.NewLineHandler(os.Stderr, slog.LevelInfo))

	root := &cobra.Command{
		Use:           "stratalog",
		Short:         "Columnar log archive search tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(cli.NewFilterCommand(logger))

	if err := root.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
