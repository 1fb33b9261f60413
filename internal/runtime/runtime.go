// Package runtime dispatches coding tasks to an execution environment.
//
// runtime.go - Runtime interface and execution types
//
// Two implementations exist: LocalRuntime runs the engine on this
// machine against the workspace directory in place, and CloudRuntime
// synchronizes the workspace through an object store and delegates to a
// remote execution service. Callers choose a runtime per call; both
// honor the same session-continuity contract.
package runtime

import (
	"context"

	"github.com/HyphaGroup/drawbridge/internal/engine/config"
)

// Kind identifies where execution happens.
type Kind string

const (
	KindLocal Kind = "local"
	KindCloud Kind = "cloud"
)

// AgentKind distinguishes full coding agents from plain LLM calls.
// Only coding agents are supported; the distinction exists so callers
// get a deliberate error instead of silent misbehavior.
type AgentKind string

const (
	AgentKindCode AgentKind = "code"
	AgentKindLLM  AgentKind = "llm"
)

// Metadata keys present on execution results.
const (
	MetaRuntime     = "runtime"
	MetaWorkspaceID = "workspaceId"
)

// ExecutionConfig describes one task dispatch.
type ExecutionConfig struct {
	AgentKind AgentKind

	// Task is the natural-language instruction for the agent.
	Task string

	// WorkspacePath is the local project directory the task operates on.
	WorkspacePath string

	// SessionID continues a prior conversation when set.
	SessionID string

	Model           string
	ReasoningEffort string

	// MCPServers are extra tool servers exposed to the agent.
	MCPServers []config.MCPServerConfig
}

// ExecutionResult is the outcome of one task.
type ExecutionResult struct {
	Output    string
	SessionID string
	Metadata  map[string]string
}

// Runtime executes tasks somewhere.
type Runtime interface {
	Kind() Kind
	Execute(ctx context.Context, cfg *ExecutionConfig) (*ExecutionResult, error)

	// Cleanup releases runtime-held resources. It does not touch the
	// workspace.
	Cleanup() error
}
