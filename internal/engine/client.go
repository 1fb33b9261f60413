package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/HyphaGroup/drawbridge/internal/engine/config"
	"github.com/HyphaGroup/drawbridge/internal/logger"
	"github.com/HyphaGroup/drawbridge/internal/metrics"
)

// ErrNoThreadID indicates the engine completed a task without ever
// surfacing a thread id, so the session cannot be continued.
var ErrNoThreadID = errors.New("engine returned no thread id; session cannot be continued")

// Factory creates the underlying engine. It is invoked at most once per
// Client; the Client memoizes the result for all subsequent calls.
type Factory func(ctx context.Context) (Engine, error)

// ExecuteRequest contains parameters for one task execution.
type ExecuteRequest struct {
	Task       string
	WorkingDir string

	// SessionID continues an existing thread when set. Empty starts a
	// new thread.
	SessionID string

	Model           string
	ReasoningEffort string
	Sandbox         SandboxMode
	ToolServers     []config.MCPServerConfig
}

// ExecuteResponse contains output from one task execution.
type ExecuteResponse struct {
	SessionID    string
	Output       string
	InputTokens  int
	OutputTokens int
	NumTurns     int
	DurationMs   int64
}

// Client owns the session-id to thread-handle cache and a lazily
// initialized engine handle shared by all calls.
type Client struct {
	factory Factory

	initOnce sync.Once
	engine   Engine
	initErr  error

	mu      sync.Mutex
	threads map[string]Thread
}

// NewClient creates a client around an engine factory. The factory runs
// on first use, not at construction.
func NewClient(factory Factory) *Client {
	return &Client{
		factory: factory,
		threads: make(map[string]Thread),
	}
}

// engineHandle returns the shared engine, initializing it exactly once.
// Concurrent first callers block on the same in-flight initialization
// instead of racing to create a second engine.
func (c *Client) engineHandle(ctx context.Context) (Engine, error) {
	c.initOnce.Do(func() {
		c.engine, c.initErr = c.factory(ctx)
	})
	if c.initErr != nil {
		return nil, fmt.Errorf("engine initialization failed: %w", c.initErr)
	}
	return c.engine, nil
}

// Execute runs exactly one task. A provided session id reuses the cached
// thread when present, otherwise resumes it through the engine. Without
// a session id a new thread is started and its lazily allocated id is
// captured after the first turn completes.
func (c *Client) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	eng, err := c.engineHandle(ctx)
	if err != nil {
		return nil, err
	}

	for i := range req.ToolServers {
		if err := req.ToolServers[i].Validate(); err != nil {
			return nil, err
		}
	}

	opts := ThreadOptions{
		WorkingDir:      req.WorkingDir,
		Model:           req.Model,
		ReasoningEffort: req.ReasoningEffort,
		Sandbox:         req.Sandbox,
		ToolServers:     req.ToolServers,
	}

	thread, err := c.threadFor(ctx, eng, req.SessionID, opts)
	if err != nil {
		return nil, err
	}

	result, err := thread.Run(ctx, req.Task)
	if err != nil {
		return nil, fmt.Errorf("task execution failed: %w", err)
	}

	sessionID := thread.ID()
	if sessionID == "" {
		return nil, ErrNoThreadID
	}
	c.cacheThread(sessionID, thread)

	return &ExecuteResponse{
		SessionID:    sessionID,
		Output:       result.FinalResponse,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		NumTurns:     result.NumTurns,
		DurationMs:   result.DurationMs,
	}, nil
}

// threadFor resolves the thread handle for a request: cached, resumed,
// or freshly started.
func (c *Client) threadFor(ctx context.Context, eng Engine, sessionID string, opts ThreadOptions) (Thread, error) {
	if sessionID == "" {
		return eng.StartThread(ctx, opts)
	}

	c.mu.Lock()
	thread, ok := c.threads[sessionID]
	c.mu.Unlock()
	if ok {
		return thread, nil
	}

	thread, err := eng.ResumeThread(ctx, sessionID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to resume session %s: %w", sessionID, err)
	}
	c.cacheThread(sessionID, thread)
	return thread, nil
}

func (c *Client) cacheThread(sessionID string, thread Thread) {
	c.mu.Lock()
	c.threads[sessionID] = thread
	count := len(c.threads)
	c.mu.Unlock()
	metrics.SetCachedThreads(float64(count))
}

// RemoveThread evicts one cached handle. The underlying engine session
// is not terminated; this is local cache hygiene only.
func (c *Client) RemoveThread(sessionID string) {
	c.mu.Lock()
	delete(c.threads, sessionID)
	count := len(c.threads)
	c.mu.Unlock()
	metrics.SetCachedThreads(float64(count))
}

// ClearCache drops all cached thread handles.
func (c *Client) ClearCache() {
	c.mu.Lock()
	count := len(c.threads)
	c.threads = make(map[string]Thread)
	c.mu.Unlock()

	if count > 0 {
		logger.Info("Cleared %d cached engine threads", count)
	}
	metrics.SetCachedThreads(0)
}

// CachedThreads returns the number of cached handles.
func (c *Client) CachedThreads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.threads)
}
