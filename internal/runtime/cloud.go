package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/HyphaGroup/drawbridge/internal/engine/config"
	"github.com/HyphaGroup/drawbridge/internal/logger"
	"github.com/HyphaGroup/drawbridge/internal/metrics"
	"github.com/HyphaGroup/drawbridge/internal/storesync"
	"github.com/HyphaGroup/drawbridge/internal/workspace"
)

const (
	defaultCloudTimeout = 10 * time.Minute

	// APIKeyEnv is consulted when no key is configured explicitly.
	APIKeyEnv = "DRAWBRIDGE_API_KEY"
)

// CloudConfig configures a CloudRuntime.
type CloudConfig struct {
	// Endpoint is the base URL of the execution service.
	Endpoint string

	// APIKey authenticates requests. Falls back to DRAWBRIDGE_API_KEY.
	APIKey string

	// Timeout bounds one remote execution. Defaults to 10 minutes;
	// requests are never retried, the remote task may not be idempotent.
	Timeout time.Duration

	// SkipSync disables workspace upload/download. The remote side then
	// works on a blank namespace; useful for tasks that only read the
	// conversation, not the files.
	SkipSync bool

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// CloudRuntime executes tasks on a remote service, moving the workspace
// through an object store before and after each call.
type CloudRuntime struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	skipSync bool
	client   *http.Client
	syncer   storesync.Syncer
}

// NewCloudRuntime validates credentials up front so a misconfigured
// deployment fails at startup rather than on the first task.
func NewCloudRuntime(cfg CloudConfig, syncer storesync.Syncer) (*CloudRuntime, error) {
	if cfg.Endpoint == "" {
		return nil, &ConfigurationError{Field: "endpoint", Reason: "must not be empty"}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(APIKeyEnv)
	}
	if apiKey == "" {
		return nil, &ConfigurationError{
			Field:  "apiKey",
			Reason: fmt.Sprintf("no API key configured and %s is not set", APIKeyEnv),
		}
	}

	if !cfg.SkipSync && syncer == nil {
		return nil, &ConfigurationError{Field: "syncer", Reason: "required unless skipSync is enabled"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCloudTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &CloudRuntime{
		endpoint: cfg.Endpoint,
		apiKey:   apiKey,
		timeout:  timeout,
		skipSync: cfg.SkipSync,
		client:   client,
		syncer:   syncer,
	}, nil
}

func (r *CloudRuntime) Kind() Kind { return KindCloud }

type executeRequest struct {
	Task        string                    `json:"task"`
	WorkspaceID string                    `json:"workspaceId"`
	SessionID   string                    `json:"sessionId,omitempty"`
	Model       string                    `json:"model,omitempty"`
	MCPServers  []config.EngineToolServer `json:"mcpServers,omitempty"`
}

type executeResponse struct {
	Output    string `json:"output"`
	SessionID string `json:"sessionId"`
}

func (r *CloudRuntime) Execute(ctx context.Context, cfg *ExecutionConfig) (*ExecutionResult, error) {
	if cfg.AgentKind != AgentKindCode {
		return nil, &UnsupportedAgentKindError{Kind: cfg.AgentKind}
	}
	if cfg.Task == "" {
		return nil, &ConfigurationError{Field: "task", Reason: "must not be empty"}
	}

	namespaceID, err := r.namespaceFor(cfg.WorkspacePath)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := r.execute(ctx, cfg, namespaceID)
	if err != nil {
		metrics.RecordExecution(string(KindCloud), "failed", time.Since(start).Seconds())
		return nil, err
	}
	metrics.RecordExecution(string(KindCloud), "success", time.Since(start).Seconds())
	return result, nil
}

// namespaceFor derives the stable object-store namespace from the
// workspace path. Skip-sync mode gets a random namespace so nothing on
// the remote side can collide with a real workspace.
func (r *CloudRuntime) namespaceFor(workspacePath string) (string, error) {
	if r.skipSync {
		return uuid.NewString(), nil
	}
	if workspacePath == "" {
		return "", &ConfigurationError{Field: "workspacePath", Reason: "must not be empty"}
	}
	id, err := workspace.Identity(workspacePath)
	if err != nil {
		return "", &ConfigurationError{Field: "workspacePath", Reason: err.Error()}
	}
	return id, nil
}

func (r *CloudRuntime) execute(ctx context.Context, cfg *ExecutionConfig, namespaceID string) (*ExecutionResult, error) {
	if !r.skipSync {
		logger.InfoContext(ctx, "Uploading workspace %s before remote execution", namespaceID)
		if err := r.syncer.Upload(ctx, cfg.WorkspacePath, namespaceID); err != nil {
			return nil, classifyRemoteError(r.endpoint, err)
		}
	}

	toolServers, err := config.ToEngineServers(cfg.MCPServers)
	if err != nil {
		return nil, err
	}

	resp, err := r.post(ctx, &executeRequest{
		Task:        cfg.Task,
		WorkspaceID: namespaceID,
		SessionID:   cfg.SessionID,
		Model:       cfg.Model,
		MCPServers:  toolServers,
	})
	if err != nil {
		return nil, err
	}

	if !r.skipSync {
		logger.InfoContext(ctx, "Downloading workspace %s after remote execution", namespaceID)
		if err := r.syncer.Download(ctx, namespaceID, cfg.WorkspacePath); err != nil {
			return nil, classifyRemoteError(r.endpoint, err)
		}
	}

	return &ExecutionResult{
		Output:    resp.Output,
		SessionID: resp.SessionID,
		Metadata: map[string]string{
			MetaRuntime:     string(KindCloud),
			MetaWorkspaceID: namespaceID,
		},
	}, nil
}

// post issues the single execution request. It is never retried; the
// remote task mutates the workspace and is not idempotent.
func (r *CloudRuntime) post(ctx context.Context, req *executeRequest) (*executeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build execution request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, classifyRemoteError(r.endpoint, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, classifyRemoteError(r.endpoint, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, classifyStatus(httpResp.StatusCode, string(respBody))
	}

	var resp executeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode execution response: %w", err)
	}
	return &resp, nil
}

// Cleanup is a no-op; the runtime holds no local resources.
func (r *CloudRuntime) Cleanup() error { return nil }
