package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/docingest/internal/app"
	"github.com/markdave123-py/docingest/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "docingest",
	Short: "Document ingestion, chunking and similarity search",
	Long: `docingest turns uploaded PDF, DOCX, XLSX and Markdown files into
section-tagged, embedded chunks and serves similarity search over them.`,
	SilenceUsage: true,
}

// setupLogging installs the default logger. Logs go to stderr so command
// output on stdout stays machine-readable.
func setupLogging(level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loadApp reads configuration and wires the service.
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger := setupLogging(cfg.LogLevel, cfg.LogFormat)
	logger.Debug("logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	return app.NewApp(ctx, cfg, logger)
}
