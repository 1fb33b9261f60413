package schedule

import (
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)

	schedule := &Schedule{
		Name:          "nightly lint",
		CronExpr:      "0 3 * * *",
		Task:          "run the linter and fix any findings",
		WorkspacePath: "/srv/projects/api",
		Runtime:       "local",
		Enabled:       true,
	}
	if err := store.Create(schedule); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if schedule.ID == "" {
		t.Fatal("create must assign an id")
	}
	if schedule.NextRunAt == nil {
		t.Error("enabled schedule must get a next run time")
	}

	got, err := store.Get(schedule.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != schedule.Name || got.Task != schedule.Task {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.OverlapBehavior != OverlapSkip || got.SessionBehavior != SessionResume {
		t.Errorf("defaults not applied: overlap=%q session=%q", got.OverlapBehavior, got.SessionBehavior)
	}
}

func TestCreateRejectsInvalidCron(t *testing.T) {
	store := newTestStore(t)

	err := store.Create(&Schedule{
		Name:          "broken",
		CronExpr:      "every day at nine",
		Task:          "task",
		WorkspacePath: "/tmp/ws",
		Runtime:       "local",
	})
	if !errors.Is(err, ErrInvalidCron) {
		t.Errorf("expected ErrInvalidCron, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("sched_missing")
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestListDue(t *testing.T) {
	store := newTestStore(t)

	past := time.Now().Add(-time.Hour)
	due := &Schedule{
		Name: "due", CronExpr: "* * * * *", Task: "t",
		WorkspacePath: "/tmp/a", Runtime: "local",
		Enabled: true, NextRunAt: &past,
	}
	if err := store.Create(due); err != nil {
		t.Fatal(err)
	}

	future := time.Now().Add(time.Hour)
	notDue := &Schedule{
		Name: "not due", CronExpr: "* * * * *", Task: "t",
		WorkspacePath: "/tmp/b", Runtime: "local",
		Enabled: true, NextRunAt: &future,
	}
	if err := store.Create(notDue); err != nil {
		t.Fatal(err)
	}

	disabled := &Schedule{
		Name: "disabled", CronExpr: "* * * * *", Task: "t",
		WorkspacePath: "/tmp/c", Runtime: "local",
		Enabled: false, NextRunAt: &past,
	}
	if err := store.Create(disabled); err != nil {
		t.Fatal(err)
	}

	schedules, err := store.ListDue(time.Now())
	if err != nil {
		t.Fatalf("list due failed: %v", err)
	}
	if len(schedules) != 1 || schedules[0].ID != due.ID {
		t.Errorf("due schedules = %v, want only %s", schedules, due.ID)
	}
}

func TestUpdate(t *testing.T) {
	store := newTestStore(t)

	schedule := &Schedule{
		Name: "original", CronExpr: "0 9 * * *", Task: "t",
		WorkspacePath: "/tmp/ws", Runtime: "local", Enabled: true,
	}
	if err := store.Create(schedule); err != nil {
		t.Fatal(err)
	}

	newName := "renamed"
	disabled := false
	updated, err := store.Update(schedule.ID, &ScheduleUpdate{
		Name:    &newName,
		Enabled: &disabled,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "renamed" || updated.Enabled {
		t.Errorf("update not applied: %+v", updated)
	}

	got, err := store.Get(schedule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "renamed" || got.Enabled {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	schedule := &Schedule{
		Name: "doomed", CronExpr: "* * * * *", Task: "t",
		WorkspacePath: "/tmp/ws", Runtime: "local",
	}
	if err := store.Create(schedule); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(schedule.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(schedule.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("schedule still present after delete: %v", err)
	}
	if err := store.Delete(schedule.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("second delete should report not found, got %v", err)
	}
}

func TestExecutionHistory(t *testing.T) {
	store := newTestStore(t)

	schedule := &Schedule{
		Name: "tracked", CronExpr: "* * * * *", Task: "t",
		WorkspacePath: "/tmp/ws", Runtime: "local",
	}
	if err := store.Create(schedule); err != nil {
		t.Fatal(err)
	}

	for i, status := range []ExecutionStatus{ExecutionSuccess, ExecutionFailed, ExecutionSkipped} {
		exec := &Execution{
			ScheduleID: schedule.ID,
			ExecutedAt: time.Now().Add(time.Duration(i) * time.Second),
			Status:     status,
		}
		if err := store.RecordExecution(exec); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	execs, err := store.ListExecutions(schedule.ID, 10)
	if err != nil {
		t.Fatalf("list executions failed: %v", err)
	}
	if len(execs) != 3 {
		t.Fatalf("executions = %d, want 3", len(execs))
	}
	// Most recent first.
	if execs[0].Status != ExecutionSkipped {
		t.Errorf("ordering wrong, first = %s", execs[0].Status)
	}
}

func TestUpdateSessionID(t *testing.T) {
	store := newTestStore(t)

	schedule := &Schedule{
		Name: "pinned", CronExpr: "* * * * *", Task: "t",
		WorkspacePath: "/tmp/ws", Runtime: "local",
	}
	if err := store.Create(schedule); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateSessionID(schedule.ID, "sess-9"); err != nil {
		t.Fatalf("update session id failed: %v", err)
	}
	got, err := store.Get(schedule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SessionID != "sess-9" {
		t.Errorf("session id = %q, want sess-9", got.SessionID)
	}
}
