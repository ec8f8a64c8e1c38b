package store

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

// AppendTurn writes one conversation turn, assigning the next contiguous
// message_order under the session row lock. Terminal sessions reject the
// append with a SessionClosed diagnostic.
func (s *Store) AppendTurn(ctx context.Context, turn survey.Turn) (survey.Turn, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return survey.Turn{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockSession(ctx, tx, turn.SessionID)
	if err != nil {
		return survey.Turn{}, err
	}
	if status.Terminal() {
		return survey.Turn{}, survey.SessionClosed(status)
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(message_order), 0) + 1
		FROM conversation_context WHERE session_id = $1`,
		turn.SessionID,
	).Scan(&turn.Order)
	if err != nil {
		return survey.Turn{}, fmt.Errorf("next message order: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO conversation_context
			(session_id, user_id, message_order, role, message_text, extracted_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING context_id, timestamp`,
		turn.SessionID, turn.UserID, turn.Order, string(turn.Role), turn.Text, turn.Extracted,
	).Scan(&turn.ID, &turn.Timestamp)
	if err != nil {
		return survey.Turn{}, fmt.Errorf("insert turn: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return survey.Turn{}, fmt.Errorf("commit: %w", err)
	}
	return turn, nil
}

// ListTurns returns the session's turns in message order. limit <= 0
// returns everything.
func (s *Store) ListTurns(ctx context.Context, sessionID string, limit int) ([]survey.Turn, error) {
	q := `
		SELECT context_id, session_id, user_id, message_order, role, message_text, extracted_data, timestamp
		FROM conversation_context
		WHERE session_id = $1
		ORDER BY message_order`
	args := []any{sessionID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []survey.Turn
	for rows.Next() {
		var t survey.Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserID, &t.Order, &t.Role, &t.Text, &t.Extracted, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}
