package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

// InsertAppliance writes one validated appliance record. The session row
// lock is taken first, so a commit racing a session termination either
// lands before the status flips or fails with a SessionClosed diagnostic.
// The record's user and family must match the session's.
func (s *Store) InsertAppliance(ctx context.Context, a survey.Appliance) (survey.Appliance, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return survey.Appliance{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockSession(ctx, tx, a.SessionID)
	if err != nil {
		return survey.Appliance{}, err
	}
	if status.Terminal() {
		return survey.Appliance{}, survey.SessionClosed(status)
	}

	var userID, familyID string
	err = tx.QueryRow(ctx, `
		SELECT user_id, family_id FROM survey_sessions WHERE session_id = $1`,
		a.SessionID,
	).Scan(&userID, &familyID)
	if err != nil {
		return survey.Appliance{}, fmt.Errorf("query session owner: %w", err)
	}
	if a.UserID != userID || a.FamilyID != familyID {
		return survey.Appliance{}, fmt.Errorf("appliance owner %s/%s does not match session owner %s/%s",
			a.UserID, a.FamilyID, userID, familyID)
	}

	w := windowColumns(a.Windows)
	err = tx.QueryRow(ctx, `
		INSERT INTO appliances
			(session_id, user_id, family_id, name, number, power, func_time,
			 num_windows, window_1_start, window_1_end, window_2_start, window_2_end,
			 window_3_start, window_3_end, func_cycle, fixed, occasional_use, wd_we_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING appliance_id, created_at`,
		a.SessionID, a.UserID, a.FamilyID, a.Name, a.Number, a.Power, a.FuncTime,
		a.NumWindows, w[0], w[1], w[2], w[3], w[4], w[5],
		a.FuncCycle, fixedText(a.Fixed), a.OccasionalUse, a.WdWeType,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return survey.Appliance{}, fmt.Errorf("insert appliance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return survey.Appliance{}, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

func (s *Store) GetAppliance(ctx context.Context, id int64) (survey.Appliance, error) {
	row := s.pool.QueryRow(ctx, applianceQuery+` WHERE appliance_id = $1`, id)
	a, err := scanAppliance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return survey.Appliance{}, ErrNotFound
	}
	if err != nil {
		return survey.Appliance{}, fmt.Errorf("query appliance: %w", err)
	}
	return a, nil
}

// ListAppliances returns all appliance rows for a session, oldest first,
// superseded rows included. Callers that want only the authoritative
// record per slot keep the last row for each name.
func (s *Store) ListAppliances(ctx context.Context, sessionID string) ([]survey.Appliance, error) {
	rows, err := s.pool.Query(ctx, applianceQuery+` WHERE session_id = $1 ORDER BY created_at, appliance_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query appliances: %w", err)
	}
	defer rows.Close()

	var out []survey.Appliance
	for rows.Next() {
		a, err := scanAppliance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appliance: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appliances: %w", err)
	}
	return out, nil
}

const applianceQuery = `
	SELECT appliance_id, session_id, user_id, family_id, name, number, power, func_time,
	       num_windows, window_1_start, window_1_end, window_2_start, window_2_end,
	       window_3_start, window_3_end, func_cycle, fixed, occasional_use, wd_we_type, created_at
	FROM appliances`

func scanAppliance(row pgx.Row) (survey.Appliance, error) {
	var (
		a     survey.Appliance
		w     [6]*int
		fixed string
	)
	err := row.Scan(&a.ID, &a.SessionID, &a.UserID, &a.FamilyID, &a.Name, &a.Number, &a.Power, &a.FuncTime,
		&a.NumWindows, &w[0], &w[1], &w[2], &w[3], &w[4], &w[5],
		&a.FuncCycle, &fixed, &a.OccasionalUse, &a.WdWeType, &a.CreatedAt)
	if err != nil {
		return survey.Appliance{}, err
	}

	for i := 0; i < len(w); i += 2 {
		if w[i] != nil && w[i+1] != nil {
			a.Windows = append(a.Windows, survey.TimeWindow{Start: *w[i], End: *w[i+1]})
		}
	}
	a.Fixed = fixed == "yes"
	return a, nil
}

// windowColumns spreads up to three windows across the six nullable
// start/end columns.
func windowColumns(windows []survey.TimeWindow) [6]*int {
	var cols [6]*int
	for i, win := range windows {
		if i >= 3 {
			break
		}
		start, end := win.Start, win.End
		cols[i*2] = &start
		cols[i*2+1] = &end
	}
	return cols
}

func fixedText(fixed bool) string {
	if fixed {
		return "yes"
	}
	return "no"
}
