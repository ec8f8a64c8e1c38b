package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

func (s *Store) CreateUser(ctx context.Context, u survey.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, family_id, age_group, interests)
		VALUES ($1, NULLIF($2, ''), $3, $4)`,
		u.ID, u.FamilyID, u.AgeGroup, u.Interests,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (survey.User, error) {
	var u survey.User
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, COALESCE(family_id, ''), COALESCE(age_group, ''), COALESCE(interests, ''), created_at
		FROM users WHERE user_id = $1`,
		userID,
	).Scan(&u.ID, &u.FamilyID, &u.AgeGroup, &u.Interests, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return survey.User{}, ErrNotFound
	}
	if err != nil {
		return survey.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// AssignFamily links a user to a family. Users without a family cannot
// start survey sessions.
func (s *Store) AssignFamily(ctx context.Context, userID, familyID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET family_id = $2 WHERE user_id = $1`,
		userID, familyID,
	)
	if err != nil {
		return fmt.Errorf("assign family: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
