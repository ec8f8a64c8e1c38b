package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/hearth/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "hearth",
	Short: "Conversational household appliance survey service",
	Long: `Hearth interviews household members about their appliances and usage
habits, extracts structured records from the conversation, validates them,
and persists them for downstream energy-demand modelling.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; real deployments set the environment directly.
		_ = godotenv.Load()
		setupLogging(config.Load().LogLevel)
	},
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
