package store

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/hearth/internal/catalog"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS families (
		family_id      TEXT PRIMARY KEY,
		household_size INTEGER,
		location       TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id    TEXT PRIMARY KEY,
		family_id  TEXT REFERENCES families(family_id),
		age_group  TEXT,
		interests  TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS survey_sessions (
		session_id TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(user_id),
		family_id  TEXT NOT NULL REFERENCES families(family_id),
		status     TEXT NOT NULL DEFAULT 'in_progress',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS appliances (
		appliance_id   BIGSERIAL PRIMARY KEY,
		session_id     TEXT NOT NULL REFERENCES survey_sessions(session_id),
		user_id        TEXT NOT NULL REFERENCES users(user_id),
		family_id      TEXT NOT NULL REFERENCES families(family_id),
		name           TEXT NOT NULL,
		number         INTEGER NOT NULL DEFAULT 1,
		power          INTEGER NOT NULL,
		func_time      INTEGER NOT NULL,
		num_windows    INTEGER NOT NULL DEFAULT 1,
		window_1_start INTEGER,
		window_1_end   INTEGER,
		window_2_start INTEGER,
		window_2_end   INTEGER,
		window_3_start INTEGER,
		window_3_end   INTEGER,
		func_cycle     INTEGER NOT NULL DEFAULT 1,
		fixed          TEXT NOT NULL DEFAULT 'no',
		occasional_use DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		wd_we_type     INTEGER NOT NULL DEFAULT 2,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_context (
		context_id     BIGSERIAL PRIMARY KEY,
		session_id     TEXT NOT NULL REFERENCES survey_sessions(session_id),
		user_id        TEXT NOT NULL REFERENCES users(user_id),
		message_order  INTEGER NOT NULL,
		role           TEXT NOT NULL,
		message_text   TEXT NOT NULL,
		extracted_data JSONB,
		timestamp      TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (session_id, message_order)
	)`,
	`CREATE TABLE IF NOT EXISTS appliance_defaults (
		appliance_type      TEXT PRIMARY KEY,
		typical_power_watts INTEGER NOT NULL,
		category            TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_appliances_session ON appliances(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_context_session ON conversation_context(session_id, message_order)`,
}

// InitSchema creates the tables and loads the fixed appliance_defaults
// seed. Safe to run repeatedly.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return s.seedDefaults(ctx)
}

func (s *Store) seedDefaults(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range catalog.Seed() {
		_, err := tx.Exec(ctx, `
			INSERT INTO appliance_defaults (appliance_type, typical_power_watts, category)
			VALUES ($1, $2, $3)
			ON CONFLICT (appliance_type) DO NOTHING`,
			d.Type, d.PowerWatts, d.Category,
		)
		if err != nil {
			return fmt.Errorf("seed default %s: %w", d.Type, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
