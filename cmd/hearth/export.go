package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/hearth/internal/config"
	"github.com/MikeSquared-Agency/hearth/internal/report"
	"github.com/MikeSquared-Agency/hearth/internal/store"
	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

var exportSession string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the demand-model export document for a session",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportSession, "session", "", "session id to export (required)")
	exportCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx := context.Background()
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	sess, err := db.GetSession(ctx, exportSession)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	rows, err := db.ListAppliances(ctx, exportSession)
	if err != nil {
		return fmt.Errorf("loading appliances: %w", err)
	}

	// Earlier rows for a slot were superseded by corrections.
	current := survey.LatestPerSlot(rows)
	doc := report.Build(sess, current, time.Now())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}

	slog.Debug("export complete", "session_id", exportSession, "appliances", len(current))
	return nil
}
