package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/HyphaGroup/drawbridge/internal/runtime"
)

func createTestSchedule(t *testing.T, store *Store, overlap OverlapBehavior) *Schedule {
	t.Helper()
	sched := &Schedule{
		Name:            "nightly tidy",
		CronExpr:        "0 3 * * *",
		Task:            "tidy the workspace",
		WorkspacePath:   "/srv/projects/api",
		Runtime:         "local",
		Enabled:         true,
		OverlapBehavior: overlap,
	}
	if err := store.Create(sched); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return sched
}

func TestOverlapSkipRecordsSkippedExecution(t *testing.T) {
	store := newTestStore(t)
	sched := createTestSchedule(t, store, OverlapSkip)

	started := make(chan struct{})
	release := make(chan struct{})
	r := NewRunner(store, func(ctx context.Context, s *Schedule) (*runtime.ExecutionResult, error) {
		close(started)
		<-release
		return &runtime.ExecutionResult{Output: "done", SessionID: "sess-1"}, nil
	})

	r.executeSchedule(sched)
	<-started
	if got := r.IsRunning(sched.ID); got != 1 {
		t.Errorf("running count = %d, want 1", got)
	}

	// Second dispatch while the first is still in flight must be skipped.
	r.executeSchedule(sched)

	execs, err := store.ListExecutions(sched.ID, 10)
	if err != nil {
		t.Fatalf("list executions failed: %v", err)
	}
	if len(execs) != 1 || execs[0].Status != ExecutionSkipped {
		t.Fatalf("expected one skipped execution, got %+v", execs)
	}

	close(release)
	r.wg.Wait()

	if got := r.IsRunning(sched.ID); got != 0 {
		t.Errorf("running count after completion = %d, want 0", got)
	}

	execs, err = store.ListExecutions(sched.ID, 10)
	if err != nil {
		t.Fatalf("list executions failed: %v", err)
	}
	if len(execs) != 2 {
		t.Fatalf("expected skipped + success records, got %d", len(execs))
	}
}

func TestOverlapParallelAllowsConcurrentRuns(t *testing.T) {
	store := newTestStore(t)
	sched := createTestSchedule(t, store, OverlapParallel)

	release := make(chan struct{})
	r := NewRunner(store, func(ctx context.Context, s *Schedule) (*runtime.ExecutionResult, error) {
		<-release
		return &runtime.ExecutionResult{Output: "done"}, nil
	})

	r.executeSchedule(sched)
	r.executeSchedule(sched)

	deadline := time.After(time.Second)
	for r.IsRunning(sched.ID) != 2 {
		select {
		case <-deadline:
			t.Fatalf("running count = %d, want 2", r.IsRunning(sched.ID))
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(release)
	r.wg.Wait()
}

func TestRunPinsSessionForResume(t *testing.T) {
	store := newTestStore(t)
	sched := createTestSchedule(t, store, OverlapSkip)

	r := NewRunner(store, func(ctx context.Context, s *Schedule) (*runtime.ExecutionResult, error) {
		return &runtime.ExecutionResult{Output: "done", SessionID: "sess-42"}, nil
	})

	r.runSchedule(sched)

	got, err := store.Get(sched.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.SessionID != "sess-42" {
		t.Errorf("session id = %q, want pinned sess-42", got.SessionID)
	}
	if got.LastRunAt == nil || got.NextRunAt == nil {
		t.Error("run times must advance after a scheduled run")
	}
}

func TestTriggerNowDoesNotAdvanceRunTimes(t *testing.T) {
	store := newTestStore(t)
	sched := createTestSchedule(t, store, OverlapSkip)

	r := NewRunner(store, func(ctx context.Context, s *Schedule) (*runtime.ExecutionResult, error) {
		return &runtime.ExecutionResult{Output: "manual run"}, nil
	})

	result, err := r.TriggerNow(sched)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if result.Output != "manual run" {
		t.Errorf("output = %q", result.Output)
	}

	got, err := store.Get(sched.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.LastRunAt != nil {
		t.Error("manual trigger must not advance last run time")
	}
}
