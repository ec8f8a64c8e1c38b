// Package session owns the survey session lifecycle and per-appliance
// elicitation progress.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

// Store is the persistence surface the tracker needs.
type Store interface {
	CreateSession(ctx context.Context, s survey.Session) (survey.Session, error)
	GetSession(ctx context.Context, id string) (survey.Session, error)
	// UpdateSessionStatus transitions in_progress to the given terminal
	// status. It returns a SessionClosed diagnostic when the session is
	// already terminal.
	UpdateSessionStatus(ctx context.Context, id string, to survey.SessionStatus) error
	ListAppliances(ctx context.Context, sessionID string) ([]survey.Appliance, error)
}

// Slot is one appliance the session is (or was) eliciting. RecordID points
// at the current authoritative appliance row for the slot; superseded rows
// stay in history but are not referenced here.
type Slot struct {
	Key      string
	Name     string
	Done     bool
	RecordID int64
}

type state struct {
	slots []*Slot
	index map[string]*Slot
}

// Tracker maintains, per session, the ordered worklist of appliance slots
// and the mapping from slot to its latest valid record.
type Tracker struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*state
}

func New(store Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:    store,
		logger:   logger,
		sessions: make(map[string]*state),
	}
}

// Start creates a new in_progress session for the user. Survey policy
// requires a family assignment before interviewing.
func (t *Tracker) Start(ctx context.Context, user survey.User) (survey.Session, error) {
	if user.FamilyID == "" {
		return survey.Session{}, survey.InvalidUserState("user has no family assignment")
	}

	sess := survey.Session{
		ID:       uuid.NewString(),
		UserID:   user.ID,
		FamilyID: user.FamilyID,
		Status:   survey.StatusInProgress,
	}
	created, err := t.store.CreateSession(ctx, sess)
	if err != nil {
		return survey.Session{}, fmt.Errorf("create session: %w", err)
	}

	t.mu.Lock()
	t.sessions[created.ID] = newState()
	t.mu.Unlock()

	t.logger.Info("session started", "session_id", created.ID, "user_id", user.ID, "family_id", user.FamilyID)
	return created, nil
}

// Resume loads a session and rebuilds slot progress from the persisted
// appliance rows. Rows are ordered by creation, so a later row for the
// same slot supersedes the earlier one.
func (t *Tracker) Resume(ctx context.Context, sessionID string) (survey.Session, error) {
	sess, err := t.store.GetSession(ctx, sessionID)
	if err != nil {
		return survey.Session{}, fmt.Errorf("get session: %w", err)
	}

	rows, err := t.store.ListAppliances(ctx, sessionID)
	if err != nil {
		return survey.Session{}, fmt.Errorf("list appliances: %w", err)
	}

	st := buildState(rows)
	t.mu.Lock()
	t.sessions[sessionID] = st
	t.mu.Unlock()

	t.logger.Info("session resumed", "session_id", sessionID, "slots", len(st.slots), "status", string(sess.Status))
	return sess, nil
}

// Sync makes sure slot state exists for the session, rebuilding it from
// persisted appliance rows when this process has not seen the session
// before (a restart, or a turn landing on a different instance). A no-op
// when state is already loaded.
func (t *Tracker) Sync(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	_, ok := t.sessions[sessionID]
	t.mu.Unlock()
	if ok {
		return nil
	}

	rows, err := t.store.ListAppliances(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list appliances: %w", err)
	}
	st := buildState(rows)

	t.mu.Lock()
	// A concurrent Sync may have won; keep whichever state landed first.
	if _, ok := t.sessions[sessionID]; !ok {
		t.sessions[sessionID] = st
		t.logger.Info("session state rebuilt", "session_id", sessionID, "slots", len(st.slots))
	}
	t.mu.Unlock()
	return nil
}

// Guard returns the session if it still accepts mutation, or a
// SessionClosed diagnostic if it is terminal.
func (t *Tracker) Guard(ctx context.Context, sessionID string) (survey.Session, error) {
	sess, err := t.store.GetSession(ctx, sessionID)
	if err != nil {
		return survey.Session{}, fmt.Errorf("get session: %w", err)
	}
	if sess.Status.Terminal() {
		return survey.Session{}, survey.SessionClosed(sess.Status)
	}
	if err := t.Sync(ctx, sessionID); err != nil {
		return survey.Session{}, err
	}
	return sess, nil
}

// Active returns the appliance slot currently being elicited: the first
// slot in the worklist that has no committed record yet.
func (t *Tracker) Active(sessionID string) (Slot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.sessions[sessionID]
	if !ok {
		return Slot{}, false
	}
	for _, s := range st.slots {
		if !s.Done {
			return *s, true
		}
	}
	return Slot{}, false
}

// Ensure registers an appliance slot in the worklist if it is not already
// there, returning its key.
func (t *Tracker) Ensure(sessionID, name string) string {
	key := survey.SlotKey(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.stateLocked(sessionID)
	if _, ok := st.index[key]; !ok {
		slot := &Slot{Key: key, Name: name}
		st.slots = append(st.slots, slot)
		st.index[key] = slot
	}
	return key
}

// Committed marks a slot complete and points it at the committed record,
// advancing the worklist cursor past it. A later call for the same slot
// moves the pointer to the superseding record.
func (t *Tracker) Committed(sessionID, name string, recordID int64) {
	key := survey.SlotKey(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.stateLocked(sessionID)
	slot, ok := st.index[key]
	if !ok {
		slot = &Slot{Key: key, Name: name}
		st.slots = append(st.slots, slot)
		st.index[key] = slot
	}
	slot.Done = true
	slot.RecordID = recordID
}

// CurrentRecord returns the authoritative record id for a slot, if the
// slot has one.
func (t *Tracker) CurrentRecord(sessionID, name string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.sessions[sessionID]
	if !ok {
		return 0, false
	}
	slot, ok := st.index[survey.SlotKey(name)]
	if !ok || !slot.Done {
		return 0, false
	}
	return slot.RecordID, true
}

// Complete marks the session finished. Called when the user signals there
// are no more appliances.
func (t *Tracker) Complete(ctx context.Context, sessionID string) error {
	if err := t.store.UpdateSessionStatus(ctx, sessionID, survey.StatusCompleted); err != nil {
		return err
	}
	t.logger.Info("session completed", "session_id", sessionID)
	return nil
}

// Abandon marks the session abandoned. The reason is logged, not persisted.
func (t *Tracker) Abandon(ctx context.Context, sessionID, reason string) error {
	if err := t.store.UpdateSessionStatus(ctx, sessionID, survey.StatusAbandoned); err != nil {
		return err
	}
	t.logger.Info("session abandoned", "session_id", sessionID, "reason", reason)
	return nil
}

func (t *Tracker) stateLocked(sessionID string) *state {
	st, ok := t.sessions[sessionID]
	if !ok {
		st = newState()
		t.sessions[sessionID] = st
	}
	return st
}

func newState() *state {
	return &state{index: make(map[string]*Slot)}
}

// buildState folds persisted appliance rows into slot state; rows are
// ordered by creation, so a later row for the same slot supersedes the
// earlier one.
func buildState(rows []survey.Appliance) *state {
	st := newState()
	for _, a := range rows {
		key := survey.SlotKey(a.Name)
		slot, ok := st.index[key]
		if !ok {
			slot = &Slot{Key: key, Name: a.Name}
			st.slots = append(st.slots, slot)
			st.index[key] = slot
		}
		slot.Done = true
		slot.RecordID = a.ID
	}
	return st
}
