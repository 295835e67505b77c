package main

import (
	"log/slog"
	"os"

	"github.com/meepledex/harvester/cmd/harvester/commands"
)

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := commands.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
