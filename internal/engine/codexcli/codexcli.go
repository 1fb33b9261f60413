// Package codexcli implements the engine contract on top of a local
// coding-agent CLI that emits JSONL events on stdout.
package codexcli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/HyphaGroup/drawbridge/internal/engine"
	"github.com/HyphaGroup/drawbridge/internal/engine/config"
	"github.com/HyphaGroup/drawbridge/internal/logger"
)

const defaultBinary = "codex"

// Config controls how the CLI is invoked.
type Config struct {
	// Binary is the executable name or path. Defaults to "codex".
	Binary string

	// DefaultModel is used when a thread does not specify one.
	DefaultModel string
}

// Engine shells out to the CLI for every turn. Thread state lives in the
// CLI's own session store; this type only builds commands and parses the
// event stream.
type Engine struct {
	binary       string
	defaultModel string
}

// New resolves the CLI binary and returns an engine. Resolution failure
// is surfaced here so callers fail fast instead of on the first task.
func New(cfg Config) (*Engine, error) {
	binary := cfg.Binary
	if binary == "" {
		binary = defaultBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("engine binary %q not found: %w", binary, err)
	}
	return &Engine{binary: path, defaultModel: cfg.DefaultModel}, nil
}

// Factory adapts New to the client's lazy-initialization contract.
func Factory(cfg Config) engine.Factory {
	return func(ctx context.Context) (engine.Engine, error) {
		return New(cfg)
	}
}

func (e *Engine) StartThread(ctx context.Context, opts engine.ThreadOptions) (engine.Thread, error) {
	return &thread{engine: e, opts: opts}, nil
}

func (e *Engine) ResumeThread(ctx context.Context, id string, opts engine.ThreadOptions) (engine.Thread, error) {
	if id == "" {
		return nil, fmt.Errorf("resume requires a thread id")
	}
	return &thread{engine: e, opts: opts, id: id}, nil
}

type thread struct {
	engine *Engine
	opts   engine.ThreadOptions

	mu sync.Mutex
	id string
}

func (t *thread) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

func (t *thread) Run(ctx context.Context, task string) (*engine.TurnResult, error) {
	t.mu.Lock()
	args := t.buildArgs()
	t.mu.Unlock()

	if len(t.opts.ToolServers) > 0 {
		configPath, cleanup, err := writeToolConfig(t.opts.ToolServers)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		args = append(args[:len(args)-1], "--tool-config", configPath, "-")
	}

	cmd := exec.CommandContext(ctx, t.engine.binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Kill the whole process group so tool-server children die too.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	if t.opts.WorkingDir != "" {
		cmd.Dir = t.opts.WorkingDir
	}
	cmd.Env = os.Environ()

	// The task goes over stdin to avoid argument length limits.
	cmd.Stdin = strings.NewReader(task)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("engine run aborted: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = runErr.Error()
		}
		return nil, fmt.Errorf("engine run failed: %s", msg)
	}

	turn, err := parseEvents(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.id == "" && turn.ThreadID != "" {
		t.id = turn.ThreadID
		logger.Info("Engine allocated thread %s", t.id)
	}
	t.mu.Unlock()

	return &engine.TurnResult{
		FinalResponse: turn.FinalResponse,
		InputTokens:   turn.InputTokens,
		OutputTokens:  turn.OutputTokens,
		NumTurns:      turn.NumTurns,
		DurationMs:    elapsed.Milliseconds(),
	}, nil
}

// buildArgs assembles the CLI invocation for one turn. Callers must hold
// t.mu for the id read.
func (t *thread) buildArgs() []string {
	args := []string{"exec", "--json"}

	if t.id != "" {
		args = append(args, "resume", t.id)
	}

	model := t.opts.Model
	if model == "" {
		model = t.engine.defaultModel
	}
	if model != "" {
		args = append(args, "-m", model)
	}

	if t.opts.ReasoningEffort != "" {
		args = append(args, "-c", fmt.Sprintf("model_reasoning_effort=%q", t.opts.ReasoningEffort))
	}

	if t.opts.Sandbox != "" {
		args = append(args, "--sandbox", string(t.opts.Sandbox))
	}

	// "-" reads the task from stdin.
	args = append(args, "-")
	return args
}

// writeToolConfig renders the tool-server config blocks to a temp file
// the CLI reads at startup.
func writeToolConfig(servers []config.MCPServerConfig) (string, func(), error) {
	blocks, err := config.RenderConfigBlocks(servers)
	if err != nil {
		return "", nil, err
	}

	f, err := os.CreateTemp("", "drawbridge-tools-*.toml")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create tool config: %w", err)
	}
	if _, err := f.WriteString(blocks); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("failed to write tool config: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("failed to write tool config: %w", err)
	}

	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}
