package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/hearth/internal/config"
	"github.com/MikeSquared-Agency/hearth/internal/store"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the database schema and seed appliance defaults",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
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

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	defaults, err := db.ListDefaults(ctx)
	if err != nil {
		return fmt.Errorf("verifying defaults: %w", err)
	}

	fmt.Printf("Schema ready, %d appliance defaults seeded\n", len(defaults))
	return nil
}
