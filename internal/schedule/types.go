package schedule

import (
	"time"
)

// OverlapBehavior defines what to do if a previous run is still active
type OverlapBehavior string

const (
	OverlapSkip     OverlapBehavior = "skip"     // Don't start if previous still running
	OverlapParallel OverlapBehavior = "parallel" // Allow concurrent execution
)

// SessionBehavior defines how recurring runs relate to engine sessions
type SessionBehavior string

const (
	SessionResume SessionBehavior = "resume" // Continue the same conversation across runs
	SessionNew    SessionBehavior = "new"    // Start a fresh session every run
)

// Schedule is a recurring task dispatched through a runtime
type Schedule struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	CronExpr        string          `json:"cron_expr"` // Standard 5-field cron expression
	Task            string          `json:"task"`      // Natural-language instruction for the agent
	WorkspacePath   string          `json:"workspace_path"`
	Runtime         string          `json:"runtime"` // local or cloud
	Model           string          `json:"model,omitempty"`
	Enabled         bool            `json:"enabled"`
	OverlapBehavior OverlapBehavior `json:"overlap_behavior"`
	SessionBehavior SessionBehavior `json:"session_behavior"`
	SessionID       string          `json:"session_id,omitempty"` // Pinned when resuming across runs
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	LastRunAt       *time.Time      `json:"last_run_at,omitempty"`
	NextRunAt       *time.Time      `json:"next_run_at,omitempty"`
}

// ExecutionStatus represents the outcome of a scheduled run
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionSkipped ExecutionStatus = "skipped"
)

// Execution is one recorded run of a schedule
type Execution struct {
	ID         string          `json:"id"`
	ScheduleID string          `json:"schedule_id"`
	SessionID  string          `json:"session_id,omitempty"`
	ExecutedAt time.Time       `json:"executed_at"`
	Status     ExecutionStatus `json:"status"`
	Output     string          `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// ScheduleUpdate contains optional fields for updating a schedule
type ScheduleUpdate struct {
	Name            *string          `json:"name,omitempty"`
	CronExpr        *string          `json:"cron_expr,omitempty"`
	Task            *string          `json:"task,omitempty"`
	Enabled         *bool            `json:"enabled,omitempty"`
	OverlapBehavior *OverlapBehavior `json:"overlap_behavior,omitempty"`
	SessionBehavior *SessionBehavior `json:"session_behavior,omitempty"`
}

// IsValidOverlapBehavior checks if the overlap behavior is valid
func IsValidOverlapBehavior(b OverlapBehavior) bool {
	return b == OverlapSkip || b == OverlapParallel
}

// IsValidSessionBehavior checks if the session behavior is valid
func IsValidSessionBehavior(b SessionBehavior) bool {
	return b == SessionResume || b == SessionNew
}
