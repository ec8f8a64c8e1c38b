//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/hearth/internal/catalog"
	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func seedSession(t *testing.T, s *Store) survey.Session {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	fam := survey.Family{ID: "fam-" + suffix, HouseholdSize: 3, Location: "test"}
	if err := s.CreateFamily(ctx, fam); err != nil {
		t.Fatalf("CreateFamily failed: %v", err)
	}
	usr := survey.User{ID: "usr-" + suffix, FamilyID: fam.ID}
	if err := s.CreateUser(ctx, usr); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	sess, err := s.CreateSession(ctx, survey.Session{
		ID:       uuid.NewString(),
		UserID:   usr.ID,
		FamilyID: fam.ID,
		Status:   survey.StatusInProgress,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return sess
}

func TestIntegration_TurnOrdering(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	sess := seedSession(t, s)

	for i, text := range []string{"hello", "hi there", "I have a TV"} {
		turn, err := s.AppendTurn(ctx, survey.Turn{
			SessionID: sess.ID,
			UserID:    sess.UserID,
			Role:      survey.RoleUser,
			Text:      text,
		})
		if err != nil {
			t.Fatalf("AppendTurn %d failed: %v", i, err)
		}
		if turn.Order != i+1 {
			t.Errorf("turn %d: order = %d, want %d", i, turn.Order, i+1)
		}
	}

	turns, err := s.ListTurns(ctx, sess.ID, 0)
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	for i, turn := range turns {
		if turn.Order != i+1 {
			t.Errorf("position %d has order %d", i, turn.Order)
		}
	}
}

func TestIntegration_ApplianceRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	sess := seedSession(t, s)

	in := survey.Appliance{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		FamilyID:   sess.FamilyID,
		Name:       "Washing Machine",
		Number:     1,
		Power:      500,
		FuncTime:   120,
		NumWindows: 2,
		Windows: []survey.TimeWindow{
			{Start: 480, End: 600},
			{Start: 1080, End: 1200},
		},
		FuncCycle:     60,
		Fixed:         false,
		OccasionalUse: 0.5,
		WdWeType:      2,
	}

	saved, err := s.InsertAppliance(ctx, in)
	if err != nil {
		t.Fatalf("InsertAppliance failed: %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("expected non-zero appliance id")
	}

	got, err := s.GetAppliance(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetAppliance failed: %v", err)
	}
	if got.Name != in.Name || got.Power != in.Power || got.NumWindows != 2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.Windows) != 2 || got.Windows[1].Start != 1080 {
		t.Errorf("windows mismatch: %+v", got.Windows)
	}
	if got.Fixed {
		t.Error("fixed should round-trip as false")
	}
}

func TestIntegration_ClosedSessionRejectsWrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	sess := seedSession(t, s)

	if err := s.UpdateSessionStatus(ctx, sess.ID, survey.StatusCompleted); err != nil {
		t.Fatalf("UpdateSessionStatus failed: %v", err)
	}

	_, err := s.AppendTurn(ctx, survey.Turn{
		SessionID: sess.ID, UserID: sess.UserID, Role: survey.RoleUser, Text: "late",
	})
	if diag, ok := survey.AsDiagnostic(err); !ok || diag.Code != survey.CodeSessionClosed {
		t.Errorf("AppendTurn on closed session: got %v, want session_closed diagnostic", err)
	}

	_, err = s.InsertAppliance(ctx, survey.Appliance{
		SessionID: sess.ID, UserID: sess.UserID, FamilyID: sess.FamilyID,
		Name: "TV", Number: 1, Power: 100, FuncTime: 60,
		NumWindows: 1, Windows: []survey.TimeWindow{{Start: 0, End: 60}},
		FuncCycle: 30, OccasionalUse: 1.0, WdWeType: 2,
	})
	if diag, ok := survey.AsDiagnostic(err); !ok || diag.Code != survey.CodeSessionClosed {
		t.Errorf("InsertAppliance on closed session: got %v, want session_closed diagnostic", err)
	}

	// Double termination is also rejected.
	err = s.UpdateSessionStatus(ctx, sess.ID, survey.StatusAbandoned)
	if diag, ok := survey.AsDiagnostic(err); !ok || diag.Code != survey.CodeSessionClosed {
		t.Errorf("second termination: got %v, want session_closed diagnostic", err)
	}
}

func TestIntegration_DefaultsSeeded(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	all, err := s.ListDefaults(ctx)
	if err != nil {
		t.Fatalf("ListDefaults failed: %v", err)
	}
	if len(all) < 9 {
		t.Errorf("got %d defaults, want at least 9", len(all))
	}

	cat := catalog.NewStaticFrom(all)
	d, ok := cat.Lookup("refrigerator")
	if !ok || d.PowerWatts != 150 {
		t.Errorf("refrigerator lookup = (%+v, %v), want 150W", d, ok)
	}
}
