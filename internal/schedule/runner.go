package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/HyphaGroup/drawbridge/internal/logger"
	"github.com/HyphaGroup/drawbridge/internal/metrics"
	"github.com/HyphaGroup/drawbridge/internal/runtime"
)

// DispatchFunc executes one scheduled task and returns the result.
// The runner supplies the schedule's runtime kind, workspace and
// session; implementations route to the right runtime.
type DispatchFunc func(ctx context.Context, schedule *Schedule) (*runtime.ExecutionResult, error)

// Runner ticks once a minute and dispatches due schedules
type Runner struct {
	store    *Store
	dispatch DispatchFunc
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// Track running executions per schedule for overlap handling
	running   map[string]int
	runningMu sync.Mutex
}

// NewRunner creates a new schedule runner
func NewRunner(store *Store, dispatch DispatchFunc) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:    store,
		dispatch: dispatch,
		ctx:      ctx,
		cancel:   cancel,
		running:  make(map[string]int),
	}
}

// Start begins the scheduler loop
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.loop()
	logger.Info("Schedule runner started")
}

// Stop gracefully stops the runner and waits for in-flight executions
func (r *Runner) Stop() {
	logger.Info("Stopping schedule runner...")
	r.cancel()
	r.wg.Wait()
	logger.Info("Schedule runner stopped")
}

func (r *Runner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	// Run immediately on start
	r.checkDueSchedules()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.checkDueSchedules()
		}
	}
}

func (r *Runner) checkDueSchedules() {
	now := time.Now()
	schedules, err := r.store.ListDue(now)
	if err != nil {
		logger.Error("Failed to list due schedules: %v", err)
		return
	}

	for _, schedule := range schedules {
		r.executeSchedule(schedule)
	}
}

// executeSchedule dispatches one schedule respecting overlap behavior
func (r *Runner) executeSchedule(schedule *Schedule) {
	r.runningMu.Lock()
	if schedule.OverlapBehavior != OverlapParallel && r.running[schedule.ID] > 0 {
		r.runningMu.Unlock()
		logger.Info("Skipping schedule %s (%s): previous execution still running", schedule.ID, schedule.Name)
		r.recordSkipped(schedule, "previous execution still running")
		return
	}
	r.running[schedule.ID]++
	r.runningMu.Unlock()

	// Execute in a goroutine to not block the ticker
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.runningMu.Lock()
			r.running[schedule.ID]--
			if r.running[schedule.ID] == 0 {
				delete(r.running, schedule.ID)
			}
			r.runningMu.Unlock()
		}()

		r.runSchedule(schedule)
	}()
}

func (r *Runner) runSchedule(schedule *Schedule) {
	now := time.Now()
	logger.Info("Executing schedule %s (%s) on %s runtime", schedule.ID, schedule.Name, schedule.Runtime)

	start := time.Now()
	result, err := r.dispatch(r.ctx, schedule)
	elapsed := time.Since(start)

	exec := &Execution{
		ScheduleID: schedule.ID,
		ExecutedAt: now,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		logger.Error("Schedule %s execution failed: %v", schedule.ID, err)
		exec.Status = ExecutionFailed
		exec.Error = err.Error()
		metrics.RecordScheduledRun("failed")
	} else {
		exec.Status = ExecutionSuccess
		exec.Output = result.Output
		exec.SessionID = result.SessionID
		metrics.RecordScheduledRun("success")

		// Pin the session so the next run continues the conversation.
		if schedule.SessionBehavior == SessionResume && result.SessionID != "" && result.SessionID != schedule.SessionID {
			if err := r.store.UpdateSessionID(schedule.ID, result.SessionID); err != nil {
				logger.Error("Failed to pin session for schedule %s: %v", schedule.ID, err)
			}
		}
	}

	if err := r.store.RecordExecution(exec); err != nil {
		logger.Error("Failed to record execution for schedule %s: %v", schedule.ID, err)
	}

	nextRun, err := NextRun(schedule.CronExpr, now)
	if err != nil {
		logger.Error("Failed to calculate next run for schedule %s: %v", schedule.ID, err)
		return
	}
	if err := r.store.UpdateRunTimes(schedule.ID, now, nextRun); err != nil {
		logger.Error("Failed to update run times for schedule %s: %v", schedule.ID, err)
	}

	logger.Info("Schedule %s completed, next run at %s", schedule.ID, nextRun.Format(time.RFC3339))
}

// IsRunning returns the number of running executions for a schedule
func (r *Runner) IsRunning(scheduleID string) int {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()
	return r.running[scheduleID]
}

// TriggerNow manually dispatches a schedule immediately. Run times are
// not advanced; only scheduled runs move the cron cursor.
func (r *Runner) TriggerNow(schedule *Schedule) (*runtime.ExecutionResult, error) {
	logger.Info("Manually triggering schedule %s (%s)", schedule.ID, schedule.Name)
	return r.dispatch(r.ctx, schedule)
}

func (r *Runner) recordSkipped(schedule *Schedule, reason string) {
	metrics.RecordScheduledRun("skipped")
	exec := &Execution{
		ScheduleID: schedule.ID,
		ExecutedAt: time.Now(),
		Status:     ExecutionSkipped,
		Error:      reason,
	}
	if err := r.store.RecordExecution(exec); err != nil {
		logger.Error("Failed to record skipped execution for schedule %s: %v", schedule.ID, err)
	}
}
