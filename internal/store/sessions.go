package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

func (s *Store) CreateSession(ctx context.Context, sess survey.Session) (survey.Session, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO survey_sessions (session_id, user_id, family_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		sess.ID, sess.UserID, sess.FamilyID, string(sess.Status),
	).Scan(&sess.CreatedAt)
	if err != nil {
		return survey.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (survey.Session, error) {
	var sess survey.Session
	err := s.pool.QueryRow(ctx, `
		SELECT session_id, user_id, family_id, status, created_at
		FROM survey_sessions WHERE session_id = $1`,
		id,
	).Scan(&sess.ID, &sess.UserID, &sess.FamilyID, &sess.Status, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return survey.Session{}, ErrNotFound
	}
	if err != nil {
		return survey.Session{}, fmt.Errorf("query session: %w", err)
	}
	return sess, nil
}

// UpdateSessionStatus transitions a session to a terminal status. The
// current status is read under a row lock so two racing terminations
// cannot both win; an already-terminal session yields a SessionClosed
// diagnostic.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, to survey.SessionStatus) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockSession(ctx, tx, id)
	if err != nil {
		return err
	}
	if !current.CanTransition(to) {
		return survey.SessionClosed(current)
	}

	_, err = tx.Exec(ctx, `
		UPDATE survey_sessions SET status = $2 WHERE session_id = $1`,
		id, string(to),
	)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// lockSession takes the session row lock and returns the current status.
// Callers hold the lock until their transaction ends, which serializes
// order assignment and status checks across concurrent writers.
func lockSession(ctx context.Context, tx pgx.Tx, sessionID string) (survey.SessionStatus, error) {
	var status survey.SessionStatus
	err := tx.QueryRow(ctx, `
		SELECT status FROM survey_sessions WHERE session_id = $1 FOR UPDATE`,
		sessionID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock session: %w", err)
	}
	return status, nil
}
