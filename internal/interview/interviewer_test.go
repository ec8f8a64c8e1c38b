package interview

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/hearth/internal/catalog"
	"github.com/MikeSquared-Agency/hearth/internal/conversation"
	"github.com/MikeSquared-Agency/hearth/internal/engine"
	"github.com/MikeSquared-Agency/hearth/internal/nlu"
	"github.com/MikeSquared-Agency/hearth/internal/session"
	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

// fakeStore backs every persistence interface the orchestrator's
// collaborators need, with the same ordering and status semantics as the
// real store.
type fakeStore struct {
	mu         sync.Mutex
	users      map[string]survey.User
	sessions   map[string]survey.Session
	turns      map[string][]survey.Turn
	appliances map[string][]survey.Appliance
	nextID     int64
	failAppend bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[string]survey.User),
		sessions:   make(map[string]survey.Session),
		turns:      make(map[string][]survey.Turn),
		appliances: make(map[string][]survey.Appliance),
	}
}

func (f *fakeStore) GetUser(_ context.Context, id string) (survey.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return survey.User{}, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s survey.Session) (survey.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (survey.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return survey.Session{}, fmt.Errorf("session %s not found", id)
	}
	return s, nil
}

func (f *fakeStore) UpdateSessionStatus(_ context.Context, id string, to survey.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	if !s.Status.CanTransition(to) {
		return survey.SessionClosed(s.Status)
	}
	s.Status = to
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) AppendTurn(_ context.Context, turn survey.Turn) (survey.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppend {
		return survey.Turn{}, fmt.Errorf("append turn: connection reset")
	}
	if f.sessions[turn.SessionID].Status.Terminal() {
		return survey.Turn{}, survey.SessionClosed(f.sessions[turn.SessionID].Status)
	}
	turn.Order = len(f.turns[turn.SessionID]) + 1
	f.nextID++
	turn.ID = f.nextID
	f.turns[turn.SessionID] = append(f.turns[turn.SessionID], turn)
	return turn, nil
}

func (f *fakeStore) ListTurns(_ context.Context, sessionID string, limit int) ([]survey.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := f.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[:limit]
	}
	return append([]survey.Turn(nil), turns...), nil
}

func (f *fakeStore) InsertAppliance(_ context.Context, a survey.Appliance) (survey.Appliance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions[a.SessionID].Status.Terminal() {
		return survey.Appliance{}, survey.SessionClosed(f.sessions[a.SessionID].Status)
	}
	f.nextID++
	a.ID = f.nextID
	f.appliances[a.SessionID] = append(f.appliances[a.SessionID], a)
	return a, nil
}

func (f *fakeStore) GetAppliance(_ context.Context, id int64) (survey.Appliance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rows := range f.appliances {
		for _, a := range rows {
			if a.ID == id {
				return a, nil
			}
		}
	}
	return survey.Appliance{}, fmt.Errorf("appliance %d not found", id)
}

func (f *fakeStore) ListAppliances(_ context.Context, sessionID string) ([]survey.Appliance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]survey.Appliance(nil), f.appliances[sessionID]...), nil
}

// fakeGen returns canned replies in sequence.
type fakeGen struct {
	mu      sync.Mutex
	replies []string
	calls   int
	systems []string
}

func (g *fakeGen) Complete(_ context.Context, system string, _ []nlu.Message, _ int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.systems = append(g.systems, system)
	if g.calls >= len(g.replies) {
		return "Anything else?", nil
	}
	reply := g.replies[g.calls]
	g.calls++
	return reply, nil
}

func newTestInterviewer(t *testing.T, gen Generator) (*Interviewer, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.users["u1"] = survey.User{ID: "u1", FamilyID: "f1"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := session.New(store, logger)
	eng := engine.New(store, catalog.NewStatic(), tracker, logger)
	log := conversation.New(store, logger)

	iv := New(Config{
		Store:     store,
		Log:       log,
		Tracker:   tracker,
		Engine:    eng,
		Generator: gen,
		Defaults:  catalog.Seed(),
	}, logger)
	return iv, store
}

const tvReply = `Nice, a TV! Saved.

[JSON_DATA_START]
{"name": "TV", "power": 100, "func_time": 180, "num_windows": 1, "window_1": [1080, 1320], "func_cycle": 60}
[JSON_DATA_END]

What else do you use in the evenings?`

func TestHandleTurn_CommitsExtraction(t *testing.T) {
	gen := &fakeGen{replies: []string{tvReply}}
	iv, store := newTestInterviewer(t, gen)
	ctx := context.Background()

	sess, greet, err := iv.Start(ctx, "u1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if greet == "" {
		t.Fatal("expected a greeting")
	}

	res, err := iv.HandleTurn(ctx, sess.ID, "u1", "I watch TV about 3 hours every evening")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if len(res.Committed) != 1 {
		t.Fatalf("got %d committed appliances, want 1", len(res.Committed))
	}
	if res.Committed[0].Name != "TV" || res.Committed[0].Power != 100 {
		t.Errorf("unexpected appliance: %+v", res.Committed[0])
	}
	if strings.Contains(res.Reply, "JSON_DATA_START") {
		t.Error("reply should not leak raw JSON blocks")
	}
	if res.Done {
		t.Error("session should still be open")
	}

	// Greeting, user turn, agent turn.
	turns := store.turns[sess.ID]
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	if turns[2].Extracted == nil {
		t.Error("agent turn should carry the extracted payload")
	}
}

func TestHandleTurn_DiagnosticBecomesPrompt(t *testing.T) {
	// Unknown appliance with no power rating: not resolvable.
	bad := `Saved!

[JSON_DATA_START]
{"name": "Plasma Globe", "func_time": 60, "num_windows": 1, "window_1": [600, 660]}
[JSON_DATA_END]`
	gen := &fakeGen{replies: []string{bad}}
	iv, store := newTestInterviewer(t, gen)
	ctx := context.Background()

	sess, _, _ := iv.Start(ctx, "u1")
	res, err := iv.HandleTurn(ctx, sess.ID, "u1", "I have a plasma globe")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if len(res.Committed) != 0 {
		t.Fatalf("nothing should commit, got %d", len(res.Committed))
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(res.Diagnostics))
	}
	if !strings.Contains(res.Reply, res.Diagnostics[0]) {
		t.Error("reply should include the clarification prompt")
	}
	if len(store.appliances[sess.ID]) != 0 {
		t.Error("no appliance rows should exist")
	}
}

func TestHandleTurn_ExitPhraseCompletes(t *testing.T) {
	gen := &fakeGen{}
	iv, store := newTestInterviewer(t, gen)
	ctx := context.Background()

	sess, _, _ := iv.Start(ctx, "u1")
	res, err := iv.HandleTurn(ctx, sess.ID, "u1", "That's all, no more appliances")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if !res.Done {
		t.Fatal("expected the session to finish")
	}
	if store.sessions[sess.ID].Status != survey.StatusCompleted {
		t.Errorf("status = %s, want completed", store.sessions[sess.ID].Status)
	}

	// A turn after completion is rejected with a closed-session diagnostic.
	_, err = iv.HandleTurn(ctx, sess.ID, "u1", "actually one more thing")
	if diag, ok := survey.AsDiagnostic(err); !ok || diag.Code != survey.CodeSessionClosed {
		t.Errorf("got %v, want session_closed diagnostic", err)
	}
}

func TestHandleTurn_ScheduleContextReachesPrompt(t *testing.T) {
	gen := &fakeGen{replies: []string{tvReply, "Anything else?"}}
	iv, _ := newTestInterviewer(t, gen)
	ctx := context.Background()

	sess, _, _ := iv.Start(ctx, "u1")
	if _, err := iv.HandleTurn(ctx, sess.ID, "u1", "TV for 3 hours at night"); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if _, err := iv.HandleTurn(ctx, sess.ID, "u1", "let me think"); err != nil {
		t.Fatalf("second turn failed: %v", err)
	}

	gen.mu.Lock()
	defer gen.mu.Unlock()
	last := gen.systems[len(gen.systems)-1]
	if !strings.Contains(last, "TV") {
		t.Error("second prompt should mention the committed TV")
	}
}

func TestExport_UsesLatestRecordPerSlot(t *testing.T) {
	update := `Updated!

[JSON_DATA_START]
{"name": "TV", "power": 200, "func_time": 240, "num_windows": 1, "window_1": [1080, 1320], "func_cycle": 60, "update": true}
[JSON_DATA_END]`
	gen := &fakeGen{replies: []string{tvReply, update}}
	iv, _ := newTestInterviewer(t, gen)
	ctx := context.Background()

	sess, _, _ := iv.Start(ctx, "u1")
	if _, err := iv.HandleTurn(ctx, sess.ID, "u1", "TV, 100 watts, 3 hours"); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if _, err := iv.HandleTurn(ctx, sess.ID, "u1", "sorry, it's actually 200 watts for 4 hours"); err != nil {
		t.Fatalf("correction turn failed: %v", err)
	}

	export, err := iv.Export(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(export.Appliances) != 1 {
		t.Fatalf("got %d exported appliances, want 1", len(export.Appliances))
	}
	if export.Appliances[0].Power != 200 {
		t.Errorf("export power = %d, want the corrected 200", export.Appliances[0].Power)
	}
}

func TestAbandon(t *testing.T) {
	iv, store := newTestInterviewer(t, &fakeGen{})
	ctx := context.Background()

	sess, _, _ := iv.Start(ctx, "u1")
	if err := iv.Abandon(ctx, sess.ID, "user timeout"); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}
	if store.sessions[sess.ID].Status != survey.StatusAbandoned {
		t.Errorf("status = %s, want abandoned", store.sessions[sess.ID].Status)
	}
}

func TestStart_AbandonsSessionWhenGreetingFails(t *testing.T) {
	iv, store := newTestInterviewer(t, &fakeGen{})
	store.failAppend = true

	if _, _, err := iv.Start(context.Background(), "u1"); err == nil {
		t.Fatal("expected Start to fail when the greeting cannot be written")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(store.sessions))
	}
	for _, sess := range store.sessions {
		if sess.Status != survey.StatusAbandoned {
			t.Errorf("session status = %s, want %s", sess.Status, survey.StatusAbandoned)
		}
	}
}
