package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"classtrack/internal/model"
)

func seedSession(t *testing.T, m *Memory, roster []string) *model.Session {
	t.Helper()
	s := &model.Session{
		Title:         "Databases L1",
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		SubjectCode:   "CS301",
		BatchID:       "batch-1",
		ClassConfigID: "room-1",
		CreatorID:     "prof-1",
	}
	if err := m.CreateSession(context.Background(), s, roster); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return s
}

func TestMemory_CreateMaterializesRoster(t *testing.T) {
	m := NewMemory()
	s := seedSession(t, m, []string{"s3", "s1", "s2"})

	roster, err := m.ListRoster(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("ListRoster: %v", err)
	}
	if len(roster) != 3 {
		t.Fatalf("roster size = %d, want 3", len(roster))
	}
	// Ordered by student id, all absent.
	for i, want := range []string{"s1", "s2", "s3"} {
		if roster[i].StudentID != want {
			t.Errorf("roster[%d] = %s, want %s", i, roster[i].StudentID, want)
		}
		if roster[i].Status != model.MarkAbsent {
			t.Errorf("roster[%d] status = %s, want absent", i, roster[i].Status)
		}
	}
}

func TestMemory_TransitionCAS(t *testing.T) {
	m := NewMemory()
	s := seedSession(t, m, []string{"s1"})
	ctx := context.Background()

	if err := m.TransitionSession(ctx, s.ID, model.StatusNew, model.StatusActive); err != nil {
		t.Fatalf("new->active: %v", err)
	}
	// Stale expectation must not overwrite.
	if err := m.TransitionSession(ctx, s.ID, model.StatusNew, model.StatusActive); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("stale transition err = %v, want ErrStatusConflict", err)
	}
	got, _ := m.GetSession(ctx, s.ID)
	if got.Status != model.StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestMemory_MarkPresentOnce(t *testing.T) {
	m := NewMemory()
	s := seedSession(t, m, []string{"s1"})
	ctx := context.Background()
	now := time.Now().UTC()

	if err := m.MarkPresent(ctx, s.ID, "s1", model.MarkedBySelf, now); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := m.MarkPresent(ctx, s.ID, "s1", model.MarkedByProfessor, now); !errors.Is(err, ErrAlreadyPresent) {
		t.Errorf("second mark err = %v, want ErrAlreadyPresent", err)
	}
	if err := m.MarkPresent(ctx, s.ID, "ghost", model.MarkedBySelf, now); !errors.Is(err, ErrNoRecord) {
		t.Errorf("non-roster mark err = %v, want ErrNoRecord", err)
	}

	rec, err := m.GetRecord(ctx, s.ID, "s1")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.Status != model.MarkPresent || rec.MarkedBy != model.MarkedBySelf {
		t.Errorf("record = %+v, want present/self", rec)
	}
}

func TestMemory_ConcurrentMarksSingleWinner(t *testing.T) {
	m := NewMemory()
	s := seedSession(t, m, []string{"s1"})
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.MarkPresent(ctx, s.ID, "s1", model.MarkedBySelf, time.Now().UTC())
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyPresent):
			losses++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != n-1 {
		t.Errorf("wins = %d losses = %d, want 1 and %d", wins, losses, n-1)
	}
}

func TestMemory_DeleteCascades(t *testing.T) {
	m := NewMemory()
	s := seedSession(t, m, []string{"s1", "s2"})
	ctx := context.Background()

	if err := m.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := m.GetSession(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession err = %v, want ErrSessionNotFound", err)
	}
	if _, err := m.GetRecord(ctx, s.ID, "s1"); !errors.Is(err, ErrNoRecord) {
		t.Errorf("GetRecord err = %v, want ErrNoRecord", err)
	}
}

func TestMemory_ListFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a := seedSession(t, m, []string{"s1", "s2"})
	b := &model.Session{
		Title: "Other", ValidFrom: time.Now(), ValidTo: time.Now().Add(time.Hour),
		SubjectCode: "CS400", BatchID: "batch-2", ClassConfigID: "room-2", CreatorID: "prof-2",
	}
	if err := m.CreateSession(ctx, b, []string{"s9"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	mine, err := m.ListSessionsByCreator(ctx, "prof-1", "")
	if err != nil || len(mine) != 1 || mine[0].ID != a.ID {
		t.Errorf("ListSessionsByCreator = %v, %v; want only %s", mine, err, a.ID)
	}
	forS1, err := m.ListSessionsByStudent(ctx, "s1", "")
	if err != nil || len(forS1) != 1 || forS1[0].ID != a.ID {
		t.Errorf("ListSessionsByStudent = %v, %v; want only %s", forS1, err, a.ID)
	}
	active, err := m.ListSessionsByCreator(ctx, "prof-1", model.StatusActive)
	if err != nil || len(active) != 0 {
		t.Errorf("status-filtered list = %v, %v; want empty", active, err)
	}
}
