package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var skipEmbedCheck bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, the auto-retry sweeper and the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipEmbedCheck, "skip-embed-check", false, "start without checking the embedding provider's vector size")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !skipEmbedCheck {
		if err := a.Embedder.CheckDimension(ctx); err != nil {
			return fmt.Errorf("embedding provider check failed (EMBED_DIM=%d): %w", a.Embedder.Dimension(), err)
		}
		slog.InfoContext(ctx, "embedding provider verified", "dimension", a.Embedder.Dimension())
	}

	slog.InfoContext(ctx, "docingest is running", "port", a.Config.Port, "isolation", a.Config.IsolationMode)
	err = a.Run(ctx)
	slog.InfoContext(ctx, "shutting down")
	return err
}
