// Package engine turns NLU candidate payloads into committed, validated
// appliance records, or rejects them with actionable diagnostics.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/hearth/internal/catalog"
	"github.com/MikeSquared-Agency/hearth/internal/session"
	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

// Gateway is the persistence surface for committed records. InsertAppliance
// is all-or-nothing and re-checks session status inside its transaction, so
// a stale in-flight extraction against a closed session fails with a
// SessionClosed diagnostic instead of silently committing.
type Gateway interface {
	InsertAppliance(ctx context.Context, a survey.Appliance) (survey.Appliance, error)
	GetAppliance(ctx context.Context, id int64) (survey.Appliance, error)
}

// Lookup backfills typical power for appliances the user did not rate.
type Lookup interface {
	Lookup(name string) (catalog.Default, bool)
}

type Engine struct {
	gw       Gateway
	defaults Lookup
	tracker  *session.Tracker
	logger   *slog.Logger
}

func New(gw Gateway, defaults Lookup, tracker *session.Tracker, logger *slog.Logger) *Engine {
	return &Engine{gw: gw, defaults: defaults, tracker: tracker, logger: logger}
}

// Result is a successful commit. Created is false when an identical
// candidate had already been committed for the slot and the call was an
// idempotent no-op. Superseded carries the previous record id when this
// commit replaced an earlier record for the same slot.
type Result struct {
	Appliance  survey.Appliance
	Created    bool
	Superseded int64
}

// Commit validates one candidate against the session and writes the
// appliance record. Recoverable failures come back as *survey.Diagnostic
// errors and leave nothing committed; other errors are infrastructure
// faults.
func (e *Engine) Commit(ctx context.Context, sess survey.Session, cand survey.Candidate) (*Result, error) {
	if sess.Status.Terminal() {
		return nil, survey.SessionClosed(sess.Status)
	}

	// Slot state may live in another process or predate a restart; the
	// idempotence and supersede checks need it rebuilt before they run.
	if err := e.tracker.Sync(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("sync session state: %w", err)
	}

	resolved, err := e.resolve(cand)
	if err != nil {
		e.logger.Info("candidate rejected",
			"session_id", sess.ID,
			"name", cand.Name,
			"error", err,
		)
		return nil, err
	}

	resolved.SessionID = sess.ID
	resolved.UserID = sess.UserID
	resolved.FamilyID = sess.FamilyID

	// A slot that already has a record either absorbs an identical
	// re-submission or gets superseded by the corrected one.
	if currentID, ok := e.tracker.CurrentRecord(sess.ID, resolved.Name); ok {
		existing, err := e.gw.GetAppliance(ctx, currentID)
		if err != nil {
			return nil, fmt.Errorf("load current record for slot: %w", err)
		}
		if sameRecord(existing, resolved) {
			e.logger.Info("duplicate candidate ignored",
				"session_id", sess.ID,
				"name", resolved.Name,
				"appliance_id", existing.ID,
			)
			return &Result{Appliance: existing, Created: false}, nil
		}

		committed, err := e.gw.InsertAppliance(ctx, resolved)
		if err != nil {
			return nil, err
		}
		e.tracker.Committed(sess.ID, committed.Name, committed.ID)
		e.logger.Info("appliance record superseded",
			"session_id", sess.ID,
			"name", committed.Name,
			"appliance_id", committed.ID,
			"superseded_id", existing.ID,
		)
		return &Result{Appliance: committed, Created: true, Superseded: existing.ID}, nil
	}

	e.tracker.Ensure(sess.ID, resolved.Name)
	committed, err := e.gw.InsertAppliance(ctx, resolved)
	if err != nil {
		return nil, err
	}
	e.tracker.Committed(sess.ID, committed.Name, committed.ID)

	e.logger.Info("appliance committed",
		"session_id", sess.ID,
		"name", committed.Name,
		"appliance_id", committed.ID,
		"power", committed.Power,
		"windows", committed.NumWindows,
	)
	return &Result{Appliance: committed, Created: true}, nil
}

// resolve fills defaults for genuinely absent optional fields, normalizes
// windows, and validates every constraint. Invalid stated values are never
// coerced to defaults.
func (e *Engine) resolve(cand survey.Candidate) (survey.Appliance, error) {
	if cand.Name == "" {
		return survey.Appliance{}, survey.MissingRequiredField("name")
	}

	a := survey.Appliance{
		Name:          cand.Name,
		Number:        1,
		FuncCycle:     1,
		OccasionalUse: 1.0,
		WdWeType:      2,
	}

	if cand.Number != nil {
		a.Number = *cand.Number
	}
	if cand.FuncCycle != nil {
		a.FuncCycle = *cand.FuncCycle
	}
	if cand.Fixed != nil {
		a.Fixed = *cand.Fixed
	}
	if cand.OccasionalUse != nil {
		a.OccasionalUse = *cand.OccasionalUse
	}
	if cand.WdWeType != nil {
		a.WdWeType = *cand.WdWeType
	}

	switch {
	case cand.Power != nil:
		a.Power = *cand.Power
	default:
		d, ok := e.defaults.Lookup(cand.Name)
		if !ok {
			return survey.Appliance{}, survey.MissingRequiredField("power")
		}
		a.Power = d.PowerWatts
	}

	if cand.FuncTime == nil {
		return survey.Appliance{}, survey.MissingRequiredField("func_time")
	}
	a.FuncTime = *cand.FuncTime

	windows, err := normalizeWindows(cand.Windows)
	if err != nil {
		return survey.Appliance{}, err
	}
	a.Windows = windows
	a.NumWindows = len(windows)

	if err := validateRanges(a); err != nil {
		return survey.Appliance{}, err
	}
	return a, nil
}

// normalizeWindows drops unused slots and checks each window and every
// pair. The stated num_windows is ignored in favor of the populated count.
func normalizeWindows(slots [3]*survey.TimeWindow) ([]survey.TimeWindow, error) {
	var windows []survey.TimeWindow
	for i, w := range slots {
		if w == nil {
			continue
		}
		if !w.Valid() {
			field := fmt.Sprintf("window_%d", i+1)
			return nil, survey.OutOfRangeField(field, fmt.Sprintf("%d-%d is not a valid start<end range within 0-%d", w.Start, w.End, survey.MinutesPerDay))
		}
		windows = append(windows, *w)
	}
	if len(windows) == 0 {
		return nil, survey.InvalidWindowCount(0)
	}

	for i := 0; i < len(windows); i++ {
		for j := i + 1; j < len(windows); j++ {
			if windows[i].Overlaps(windows[j]) {
				return nil, survey.OverlappingWindows(windows[i], windows[j])
			}
		}
	}
	return windows, nil
}

func validateRanges(a survey.Appliance) error {
	switch {
	case a.Power < 1 || a.Power > 10000:
		return survey.OutOfRangeField("power", fmt.Sprintf("%d watts, must be 1-10000", a.Power))
	case a.FuncTime < 1 || a.FuncTime > survey.MinutesPerDay:
		return survey.OutOfRangeField("func_time", fmt.Sprintf("%d minutes, must be 1-%d", a.FuncTime, survey.MinutesPerDay))
	case a.Number < 1 || a.Number > 100:
		return survey.OutOfRangeField("number", fmt.Sprintf("%d, must be 1-100", a.Number))
	case a.FuncCycle < 1:
		return survey.OutOfRangeField("func_cycle", fmt.Sprintf("%d minutes, must be at least 1", a.FuncCycle))
	case a.FuncCycle > a.FuncTime:
		return survey.OutOfRangeField("func_cycle", fmt.Sprintf("%d minutes exceeds daily usage of %d", a.FuncCycle, a.FuncTime))
	case a.OccasionalUse < 0 || a.OccasionalUse > 1:
		return survey.OutOfRangeField("occasional_use", fmt.Sprintf("%g, must be between 0.0 and 1.0", a.OccasionalUse))
	case a.WdWeType < 0 || a.WdWeType > 2:
		return survey.OutOfRangeField("wd_we_type", fmt.Sprintf("%d, must be 0, 1 or 2", a.WdWeType))
	}
	return nil
}

// sameRecord compares the fields a user can state, ignoring row identity.
func sameRecord(a, b survey.Appliance) bool {
	if survey.SlotKey(a.Name) != survey.SlotKey(b.Name) ||
		a.Number != b.Number ||
		a.Power != b.Power ||
		a.FuncTime != b.FuncTime ||
		a.NumWindows != b.NumWindows ||
		a.FuncCycle != b.FuncCycle ||
		a.Fixed != b.Fixed ||
		a.OccasionalUse != b.OccasionalUse ||
		a.WdWeType != b.WdWeType {
		return false
	}
	for i := range a.Windows {
		if a.Windows[i] != b.Windows[i] {
			return false
		}
	}
	return true
}
