package schedule

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInvalidCron      = errors.New("invalid cron expression")
)

// Store handles schedule persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new schedule store with SQLite backend
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "schedules.db")
	// Enable WAL mode and busy timeout for better concurrent access
	db, err := sql.Open("sqlite", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cron_expr TEXT NOT NULL,
		task TEXT NOT NULL,
		workspace_path TEXT NOT NULL,
		runtime TEXT NOT NULL DEFAULT 'local',
		model TEXT,
		enabled INTEGER NOT NULL DEFAULT 1,
		overlap_behavior TEXT NOT NULL DEFAULT 'skip',
		session_behavior TEXT NOT NULL DEFAULT 'resume',
		session_id TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_run_at DATETIME,
		next_run_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_schedules_enabled ON schedules(enabled);
	CREATE INDEX IF NOT EXISTS idx_schedules_next_run ON schedules(next_run_at);

	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL,
		session_id TEXT,
		executed_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		output TEXT,
		error TEXT,
		duration_ms INTEGER,
		FOREIGN KEY (schedule_id) REFERENCES schedules(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_executions_schedule ON executions(schedule_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Create creates a new schedule
func (s *Store) Create(schedule *Schedule) error {
	if err := ValidateCron(schedule.CronExpr); err != nil {
		return err
	}
	if schedule.OverlapBehavior == "" {
		schedule.OverlapBehavior = OverlapSkip
	}
	if schedule.SessionBehavior == "" {
		schedule.SessionBehavior = SessionResume
	}
	if !IsValidOverlapBehavior(schedule.OverlapBehavior) {
		return fmt.Errorf("invalid overlap behavior: %s", schedule.OverlapBehavior)
	}
	if !IsValidSessionBehavior(schedule.SessionBehavior) {
		return fmt.Errorf("invalid session behavior: %s", schedule.SessionBehavior)
	}

	if schedule.ID == "" {
		schedule.ID = "sched_" + uuid.New().String()[:8]
	}
	now := time.Now()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	if schedule.NextRunAt == nil && schedule.Enabled {
		nextRun, err := NextRun(schedule.CronExpr, now)
		if err == nil {
			schedule.NextRunAt = &nextRun
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO schedules (id, name, cron_expr, task, workspace_path, runtime, model,
		                       enabled, overlap_behavior, session_behavior, session_id,
		                       created_at, updated_at, last_run_at, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID, schedule.Name, schedule.CronExpr, schedule.Task,
		schedule.WorkspacePath, schedule.Runtime, schedule.Model,
		schedule.Enabled, schedule.OverlapBehavior, schedule.SessionBehavior, schedule.SessionID,
		schedule.CreatedAt, schedule.UpdatedAt, schedule.LastRunAt, schedule.NextRunAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}
	return nil
}

const scheduleColumns = `id, name, cron_expr, task, workspace_path, runtime, model,
	enabled, overlap_behavior, session_behavior, session_id,
	created_at, updated_at, last_run_at, next_run_at`

func scanSchedule(row interface{ Scan(...any) error }) (*Schedule, error) {
	var schedule Schedule
	var model, sessionID sql.NullString
	var lastRunAt, nextRunAt sql.NullTime
	var enabled int

	err := row.Scan(
		&schedule.ID, &schedule.Name, &schedule.CronExpr, &schedule.Task,
		&schedule.WorkspacePath, &schedule.Runtime, &model,
		&enabled, &schedule.OverlapBehavior, &schedule.SessionBehavior, &sessionID,
		&schedule.CreatedAt, &schedule.UpdatedAt, &lastRunAt, &nextRunAt,
	)
	if err != nil {
		return nil, err
	}

	schedule.Enabled = enabled != 0
	schedule.Model = model.String
	schedule.SessionID = sessionID.String
	if lastRunAt.Valid {
		schedule.LastRunAt = &lastRunAt.Time
	}
	if nextRunAt.Valid {
		schedule.NextRunAt = &nextRunAt.Time
	}
	return &schedule, nil
}

// Get retrieves a schedule by ID
func (s *Store) Get(id string) (*Schedule, error) {
	row := s.db.QueryRow(`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	schedule, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	return schedule, nil
}

// List returns all schedules
func (s *Store) List() ([]*Schedule, error) {
	rows, err := s.db.Query(`SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schedules []*Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

// ListDue returns enabled schedules whose next run time has passed
func (s *Store) ListDue(now time.Time) ([]*Schedule, error) {
	rows, err := s.db.Query(`
		SELECT `+scheduleColumns+` FROM schedules
		WHERE enabled = 1 AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at`, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schedules []*Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

// Update applies the non-nil fields of an update to a schedule
func (s *Store) Update(id string, update *ScheduleUpdate) (*Schedule, error) {
	schedule, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		schedule.Name = *update.Name
	}
	if update.CronExpr != nil {
		if err := ValidateCron(*update.CronExpr); err != nil {
			return nil, err
		}
		schedule.CronExpr = *update.CronExpr
		nextRun, err := NextRun(schedule.CronExpr, time.Now())
		if err == nil {
			schedule.NextRunAt = &nextRun
		}
	}
	if update.Task != nil {
		schedule.Task = *update.Task
	}
	if update.Enabled != nil {
		schedule.Enabled = *update.Enabled
	}
	if update.OverlapBehavior != nil {
		if !IsValidOverlapBehavior(*update.OverlapBehavior) {
			return nil, fmt.Errorf("invalid overlap behavior: %s", *update.OverlapBehavior)
		}
		schedule.OverlapBehavior = *update.OverlapBehavior
	}
	if update.SessionBehavior != nil {
		if !IsValidSessionBehavior(*update.SessionBehavior) {
			return nil, fmt.Errorf("invalid session behavior: %s", *update.SessionBehavior)
		}
		schedule.SessionBehavior = *update.SessionBehavior
	}
	schedule.UpdatedAt = time.Now()

	_, err = s.db.Exec(`
		UPDATE schedules
		SET name = ?, cron_expr = ?, task = ?, enabled = ?,
		    overlap_behavior = ?, session_behavior = ?, updated_at = ?, next_run_at = ?
		WHERE id = ?`,
		schedule.Name, schedule.CronExpr, schedule.Task, schedule.Enabled,
		schedule.OverlapBehavior, schedule.SessionBehavior, schedule.UpdatedAt, schedule.NextRunAt,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}
	return schedule, nil
}

// Delete removes a schedule and its execution history
func (s *Store) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrScheduleNotFound
	}
	// Cascade is not guaranteed without foreign_keys pragma; delete explicitly.
	_, _ = s.db.Exec(`DELETE FROM executions WHERE schedule_id = ?`, id)
	return nil
}

// UpdateRunTimes records the last run and schedules the next one
func (s *Store) UpdateRunTimes(id string, lastRun, nextRun time.Time) error {
	_, err := s.db.Exec(`
		UPDATE schedules SET last_run_at = ?, next_run_at = ?, updated_at = ? WHERE id = ?`,
		lastRun, nextRun, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update run times: %w", err)
	}
	return nil
}

// UpdateSessionID pins the session a resuming schedule continues with
func (s *Store) UpdateSessionID(id, sessionID string) error {
	_, err := s.db.Exec(`UPDATE schedules SET session_id = ?, updated_at = ? WHERE id = ?`,
		sessionID, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update session id: %w", err)
	}
	return nil
}

// RecordExecution appends one run to the execution history
func (s *Store) RecordExecution(exec *Execution) error {
	if exec.ID == "" {
		exec.ID = "exec_" + uuid.New().String()[:8]
	}
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO executions (id, schedule_id, session_id, executed_at, status, output, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.ScheduleID, exec.SessionID, exec.ExecutedAt,
		exec.Status, exec.Output, exec.Error, exec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// ListExecutions returns the most recent executions for a schedule
func (s *Store) ListExecutions(scheduleID string, limit int) ([]*Execution, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, schedule_id, session_id, executed_at, status, output, error, duration_ms
		FROM executions WHERE schedule_id = ?
		ORDER BY executed_at DESC LIMIT ?`, scheduleID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var execs []*Execution
	for rows.Next() {
		var exec Execution
		var sessionID, output, errMsg sql.NullString
		var durationMs sql.NullInt64
		if err := rows.Scan(
			&exec.ID, &exec.ScheduleID, &sessionID, &exec.ExecutedAt,
			&exec.Status, &output, &errMsg, &durationMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		exec.SessionID = sessionID.String
		exec.Output = output.String
		exec.Error = errMsg.String
		exec.DurationMs = durationMs.Int64
		execs = append(execs, &exec)
	}
	return execs, rows.Err()
}
