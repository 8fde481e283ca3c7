package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/docingest/internal/core/isolation"
)

var workerArgs isolation.WorkerArgs

// extractCmd is the isolation child. It writes exactly one status line to
// stdout and logs to stderr.
var extractCmd = &cobra.Command{
	Use:    "extract",
	Short:  "Parse and chunk one file (isolation worker)",
	Hidden: true,
	Args:   cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		setupLogging(slog.LevelInfo, "text")
		os.Exit(isolation.RunWorker(cmd.Context(), workerArgs, os.Stdout))
	},
}

func init() {
	workerArgs.BindFlags(extractCmd.Flags())
	rootCmd.AddCommand(extractCmd)
}
