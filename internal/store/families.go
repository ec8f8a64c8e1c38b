package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("not found")

func (s *Store) CreateFamily(ctx context.Context, f survey.Family) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO families (family_id, household_size, location)
		VALUES ($1, $2, $3)`,
		f.ID, f.HouseholdSize, f.Location,
	)
	if err != nil {
		return fmt.Errorf("insert family: %w", err)
	}
	return nil
}

func (s *Store) GetFamily(ctx context.Context, familyID string) (survey.Family, error) {
	var f survey.Family
	err := s.pool.QueryRow(ctx, `
		SELECT family_id, COALESCE(household_size, 0), COALESCE(location, ''), created_at
		FROM families WHERE family_id = $1`,
		familyID,
	).Scan(&f.ID, &f.HouseholdSize, &f.Location, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return survey.Family{}, ErrNotFound
	}
	if err != nil {
		return survey.Family{}, fmt.Errorf("query family: %w", err)
	}
	return f, nil
}
