// Package conversation is the append-only record of survey interview
// turns. Turns are immutable once written; corrections arrive as new turns
// whose extracted payload supersedes an earlier proposal.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

// Store is the persistence surface for the log. AppendTurn assigns
// message_order atomically with respect to concurrent appends on the same
// session and rejects sessions that are no longer in_progress.
type Store interface {
	AppendTurn(ctx context.Context, turn survey.Turn) (survey.Turn, error)
	ListTurns(ctx context.Context, sessionID string, limit int) ([]survey.Turn, error)
}

type Log struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Log {
	return &Log{store: store, logger: logger}
}

// Append writes one turn to the session's log and returns it with its
// assigned order. The turn's user must be the session's user; a mismatch
// indicates an upstream data-management bug, not a conversational error.
func (l *Log) Append(ctx context.Context, sess survey.Session, userID string, role survey.Role, text string, extracted json.RawMessage) (survey.Turn, error) {
	if !role.Valid() {
		return survey.Turn{}, fmt.Errorf("unknown role %q", role)
	}
	if strings.TrimSpace(text) == "" {
		return survey.Turn{}, fmt.Errorf("message text is required")
	}
	if userID != sess.UserID {
		return survey.Turn{}, fmt.Errorf("turn user %s does not match session user %s", userID, sess.UserID)
	}

	turn, err := l.store.AppendTurn(ctx, survey.Turn{
		SessionID: sess.ID,
		UserID:    userID,
		Role:      role,
		Text:      text,
		Extracted: extracted,
	})
	if err != nil {
		return survey.Turn{}, err
	}

	l.logger.Debug("turn appended",
		"session_id", sess.ID,
		"order", turn.Order,
		"role", string(role),
		"has_extracted", extracted != nil,
	)
	return turn, nil
}

// History returns the full ordered turn sequence for audit and replay.
func (l *Log) History(ctx context.Context, sessionID string) ([]survey.Turn, error) {
	return l.store.ListTurns(ctx, sessionID, 0)
}

// Recent returns the last limit turns in order, for prompt context.
func (l *Log) Recent(ctx context.Context, sessionID string, limit int) ([]survey.Turn, error) {
	turns, err := l.store.ListTurns(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}
