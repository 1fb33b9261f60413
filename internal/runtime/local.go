package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/HyphaGroup/drawbridge/internal/engine"
	"github.com/HyphaGroup/drawbridge/internal/logger"
	"github.com/HyphaGroup/drawbridge/internal/metrics"
)

// LocalRuntime runs tasks through the engine client on this machine.
// The workspace directory is used in place; no synchronization happens.
type LocalRuntime struct {
	client *engine.Client
}

func NewLocalRuntime(client *engine.Client) *LocalRuntime {
	return &LocalRuntime{client: client}
}

func (r *LocalRuntime) Kind() Kind { return KindLocal }

func (r *LocalRuntime) Execute(ctx context.Context, cfg *ExecutionConfig) (*ExecutionResult, error) {
	if cfg.AgentKind != AgentKindCode {
		return nil, &UnsupportedAgentKindError{Kind: cfg.AgentKind}
	}
	if cfg.Task == "" {
		return nil, &ConfigurationError{Field: "task", Reason: "must not be empty"}
	}

	workDir, err := filepath.Abs(cfg.WorkspacePath)
	if err != nil {
		return nil, &ConfigurationError{Field: "workspacePath", Reason: err.Error()}
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare workspace directory: %w", err)
	}

	logger.InfoContext(ctx, "Executing task locally in %s (session=%q)", workDir, cfg.SessionID)

	start := time.Now()
	resp, err := r.client.Execute(ctx, &engine.ExecuteRequest{
		Task:            cfg.Task,
		WorkingDir:      workDir,
		SessionID:       cfg.SessionID,
		Model:           cfg.Model,
		ReasoningEffort: cfg.ReasoningEffort,
		Sandbox:         engine.SandboxFullAccess,
		ToolServers:     cfg.MCPServers,
	})
	if err != nil {
		metrics.RecordExecution(string(KindLocal), "failed", time.Since(start).Seconds())
		return nil, &EngineExecutionError{Err: err}
	}
	metrics.RecordExecution(string(KindLocal), "success", time.Since(start).Seconds())

	return &ExecutionResult{
		Output:    resp.Output,
		SessionID: resp.SessionID,
		Metadata: map[string]string{
			MetaRuntime: string(KindLocal),
		},
	}, nil
}

// Cleanup drops cached engine threads. Engine-side sessions survive and
// can still be resumed by id.
func (r *LocalRuntime) Cleanup() error {
	r.client.ClearCache()
	return nil
}
