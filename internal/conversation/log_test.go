package conversation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

// fakeStore assigns contiguous orders per session the way the gateway
// does, under a lock so the concurrency test exercises real contention.
type fakeStore struct {
	mu    sync.Mutex
	turns map[string][]survey.Turn
}

func newFakeStore() *fakeStore {
	return &fakeStore{turns: make(map[string][]survey.Turn)}
}

func (f *fakeStore) AppendTurn(_ context.Context, turn survey.Turn) (survey.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turn.Order = len(f.turns[turn.SessionID]) + 1
	turn.ID = int64(turn.Order)
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
	out := make([]survey.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func testLog() (*Log, *fakeStore) {
	store := newFakeStore()
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func sessionFixture() survey.Session {
	return survey.Session{ID: "s1", UserID: "u1", FamilyID: "f1", Status: survey.StatusInProgress}
}

func TestAppend_AssignsContiguousOrder(t *testing.T) {
	log, _ := testLog()
	ctx := context.Background()
	sess := sessionFixture()

	texts := []string{"hello", "hi there", "I have a fridge"}
	for i, text := range texts {
		turn, err := log.Append(ctx, sess, "u1", survey.RoleUser, text, nil)
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		if turn.Order != i+1 {
			t.Errorf("turn %d order = %d, want %d", i, turn.Order, i+1)
		}
	}

	history, err := log.History(ctx, sess.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	for i, turn := range history {
		if turn.Order != i+1 {
			t.Errorf("history[%d].Order = %d, want %d", i, turn.Order, i+1)
		}
	}
}

func TestAppend_Validation(t *testing.T) {
	log, _ := testLog()
	ctx := context.Background()
	sess := sessionFixture()

	tests := []struct {
		name   string
		userID string
		role   survey.Role
		text   string
	}{
		{"unknown role", "u1", survey.Role("bot"), "hi"},
		{"empty text", "u1", survey.RoleUser, "   "},
		{"user mismatch", "u2", survey.RoleUser, "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := log.Append(ctx, sess, tt.userID, tt.role, tt.text, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAppend_ConcurrentOrdersStayContiguous(t *testing.T) {
	log, _ := testLog()
	ctx := context.Background()
	sess := sessionFixture()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := log.Append(ctx, sess, "u1", survey.RoleUser, "turn", nil); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	history, err := log.History(ctx, sess.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != n {
		t.Fatalf("got %d turns, want %d", len(history), n)
	}
	seen := make(map[int]bool)
	for _, turn := range history {
		if turn.Order < 1 || turn.Order > n {
			t.Errorf("order %d out of range 1..%d", turn.Order, n)
		}
		if seen[turn.Order] {
			t.Errorf("duplicate order %d", turn.Order)
		}
		seen[turn.Order] = true
	}
}

func TestRecent_ReturnsTail(t *testing.T) {
	log, _ := testLog()
	ctx := context.Background()
	sess := sessionFixture()

	for i := 0; i < 5; i++ {
		if _, err := log.Append(ctx, sess, "u1", survey.RoleUser, "turn", nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := log.Recent(ctx, sess.ID, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d turns, want 2", len(recent))
	}
	if recent[0].Order != 4 || recent[1].Order != 5 {
		t.Errorf("recent orders = %d, %d, want 4, 5", recent[0].Order, recent[1].Order)
	}
}
