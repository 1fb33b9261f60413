// Package engine provides the execution engine abstraction layer.
//
// engine.go - Engine and Thread interface definitions
//
// The engine itself is an external collaborator: it starts and resumes
// conversational threads and runs one task per turn. This package only
// defines the contract and manages thread handle identity and caching.
package engine

import (
	"context"

	"github.com/HyphaGroup/drawbridge/internal/engine/config"
)

// SandboxMode is the permission level granted over the workspace.
type SandboxMode string

const (
	SandboxReadOnly       SandboxMode = "read-only"
	SandboxWorkspaceWrite SandboxMode = "workspace-write"
	SandboxFullAccess     SandboxMode = "full-access"
)

// ThreadOptions configures a thread at start or resume. Tool servers
// are carried in canonical form; each engine converts them to whatever
// format it is configured through.
type ThreadOptions struct {
	WorkingDir      string
	Model           string
	ReasoningEffort string
	Sandbox         SandboxMode
	ToolServers     []config.MCPServerConfig
}

// TurnResult is the terminal result of running one task on a thread.
type TurnResult struct {
	FinalResponse string
	InputTokens   int
	OutputTokens  int
	NumTurns      int
	DurationMs    int64
}

// Thread is a live conversational handle owned by the engine. Thread
// identity may be allocated lazily: ID returns "" until the engine has
// assigned one, which for new threads happens during the first Run.
type Thread interface {
	ID() string
	Run(ctx context.Context, task string) (*TurnResult, error)
}

// Engine starts and resumes threads.
type Engine interface {
	// StartThread creates a new thread. The thread's identity becomes
	// known only after its first task completes.
	StartThread(ctx context.Context, opts ThreadOptions) (Thread, error)

	// ResumeThread reattaches to an existing thread by id.
	ResumeThread(ctx context.Context, id string, opts ThreadOptions) (Thread, error)
}
