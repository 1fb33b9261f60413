// tools.go - MCP tool definitions and handlers
package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HyphaGroup/drawbridge/internal/engine/config"
	"github.com/HyphaGroup/drawbridge/internal/logger"
	"github.com/HyphaGroup/drawbridge/internal/runtime"
	"github.com/HyphaGroup/drawbridge/internal/schedule"
	"github.com/HyphaGroup/drawbridge/internal/validation"
	"github.com/HyphaGroup/drawbridge/internal/workspace"
)

// ToolServerInput describes an MCP tool server exposed to the agent
type ToolServerInput struct {
	Name         string            `json:"name" jsonschema:"server name"`
	Type         string            `json:"type" jsonschema:"transport type: stdio or http"`
	Command      string            `json:"command,omitempty" jsonschema:"executable path for stdio servers"`
	Args         []string          `json:"args,omitempty" jsonschema:"command arguments for stdio servers"`
	Env          map[string]string `json:"env,omitempty" jsonschema:"environment variables for stdio servers"`
	URL          string            `json:"url,omitempty" jsonschema:"endpoint URL for http servers"`
	BearerToken  string            `json:"bearer_token,omitempty" jsonschema:"bearer token for http servers"`
	AllowedTools []string          `json:"allowed_tools,omitempty" jsonschema:"restrict the agent to these tools"`
}

func (t *ToolServerInput) toConfig() config.MCPServerConfig {
	return config.MCPServerConfig{
		Name:         t.Name,
		Type:         config.ServerType(t.Type),
		Command:      t.Command,
		Args:         t.Args,
		Env:          t.Env,
		URL:          t.URL,
		BearerToken:  t.BearerToken,
		AllowedTools: t.AllowedTools,
	}
}

// ExecuteTaskInput is the input for the execute_task tool
type ExecuteTaskInput struct {
	Task            string            `json:"task" jsonschema:"natural-language instruction for the coding agent"`
	WorkspacePath   string            `json:"workspace_path" jsonschema:"local project directory the task operates on"`
	Runtime         string            `json:"runtime,omitempty" jsonschema:"where to execute: local (default) or cloud"`
	SessionID       string            `json:"session_id,omitempty" jsonschema:"continue a prior conversation"`
	Model           string            `json:"model,omitempty" jsonschema:"model override"`
	ReasoningEffort string            `json:"reasoning_effort,omitempty" jsonschema:"reasoning effort override"`
	MCPServers      []ToolServerInput `json:"mcp_servers,omitempty" jsonschema:"extra tool servers exposed to the agent"`
}

// ExecuteTaskOutput is the result of the execute_task tool
type ExecuteTaskOutput struct {
	Output      string `json:"output"`
	SessionID   string `json:"session_id"`
	Runtime     string `json:"runtime"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

func (s *Server) handleExecuteTask(ctx context.Context, req *sdk.CallToolRequest, input ExecuteTaskInput) (*sdk.CallToolResult, ExecuteTaskOutput, error) {
	if input.Task == "" {
		return nil, ExecuteTaskOutput{}, fmt.Errorf("task is required")
	}
	if err := validation.ValidateWorkspacePath(input.WorkspacePath); err != nil {
		return nil, ExecuteTaskOutput{}, err
	}
	if input.SessionID != "" {
		if err := validation.ValidateSessionID(input.SessionID); err != nil {
			return nil, ExecuteTaskOutput{}, err
		}
	}

	rt, err := s.runtimeFor(input.Runtime)
	if err != nil {
		return nil, ExecuteTaskOutput{}, err
	}

	servers := make([]config.MCPServerConfig, len(input.MCPServers))
	for i := range input.MCPServers {
		servers[i] = input.MCPServers[i].toConfig()
	}

	result, err := rt.Execute(ctx, &runtime.ExecutionConfig{
		AgentKind:       runtime.AgentKindCode,
		Task:            input.Task,
		WorkspacePath:   input.WorkspacePath,
		SessionID:       input.SessionID,
		Model:           input.Model,
		ReasoningEffort: input.ReasoningEffort,
		MCPServers:      servers,
	})
	if err != nil {
		return nil, ExecuteTaskOutput{}, err
	}

	return nil, ExecuteTaskOutput{
		Output:      result.Output,
		SessionID:   result.SessionID,
		Runtime:     result.Metadata[runtime.MetaRuntime],
		WorkspaceID: result.Metadata[runtime.MetaWorkspaceID],
	}, nil
}

// WorkspaceSyncInput is the input for workspace_push and workspace_pull
type WorkspaceSyncInput struct {
	WorkspacePath string `json:"workspace_path" jsonschema:"local project directory to sync"`
}

// WorkspaceSyncOutput is the result of a workspace sync tool
type WorkspaceSyncOutput struct {
	NamespaceID string `json:"namespace_id"`
}

func (s *Server) handleWorkspacePush(ctx context.Context, req *sdk.CallToolRequest, input WorkspaceSyncInput) (*sdk.CallToolResult, WorkspaceSyncOutput, error) {
	namespaceID, err := s.syncWorkspace(ctx, input.WorkspacePath, true)
	if err != nil {
		return nil, WorkspaceSyncOutput{}, err
	}
	return nil, WorkspaceSyncOutput{NamespaceID: namespaceID}, nil
}

func (s *Server) handleWorkspacePull(ctx context.Context, req *sdk.CallToolRequest, input WorkspaceSyncInput) (*sdk.CallToolResult, WorkspaceSyncOutput, error) {
	namespaceID, err := s.syncWorkspace(ctx, input.WorkspacePath, false)
	if err != nil {
		return nil, WorkspaceSyncOutput{}, err
	}
	return nil, WorkspaceSyncOutput{NamespaceID: namespaceID}, nil
}

func (s *Server) syncWorkspace(ctx context.Context, path string, push bool) (string, error) {
	if s.syncer == nil {
		return "", fmt.Errorf("workspace sync is not configured")
	}
	if err := validation.ValidateWorkspacePath(path); err != nil {
		return "", err
	}
	namespaceID, err := workspace.Identity(path)
	if err != nil {
		return "", err
	}

	if push {
		err = s.syncer.Upload(ctx, path, namespaceID)
	} else {
		err = s.syncer.Download(ctx, namespaceID, path)
	}
	if err != nil {
		return "", err
	}
	return namespaceID, nil
}

// SessionsClearInput is the input for the sessions_clear tool
type SessionsClearInput struct{}

// SessionsClearOutput is the result of the sessions_clear tool
type SessionsClearOutput struct {
	Status string `json:"status"`
}

func (s *Server) handleSessionsClear(ctx context.Context, req *sdk.CallToolRequest, input SessionsClearInput) (*sdk.CallToolResult, SessionsClearOutput, error) {
	for _, rt := range s.runtimes {
		if err := rt.Cleanup(); err != nil {
			return nil, SessionsClearOutput{}, err
		}
	}
	logger.InfoContext(ctx, "Cleared cached sessions across runtimes")
	return nil, SessionsClearOutput{Status: "cleared"}, nil
}

// ScheduleCreateInput is the input for the schedule_create tool
type ScheduleCreateInput struct {
	Name            string `json:"name" jsonschema:"display name for the schedule"`
	CronExpr        string `json:"cron_expr" jsonschema:"standard 5-field cron expression"`
	Task            string `json:"task" jsonschema:"instruction dispatched on each run"`
	WorkspacePath   string `json:"workspace_path" jsonschema:"project directory the task operates on"`
	Runtime         string `json:"runtime,omitempty" jsonschema:"local (default) or cloud"`
	Model           string `json:"model,omitempty" jsonschema:"model override"`
	OverlapBehavior string `json:"overlap_behavior,omitempty" jsonschema:"skip (default) or parallel"`
	SessionBehavior string `json:"session_behavior,omitempty" jsonschema:"resume (default) or new"`
}

func (s *Server) handleScheduleCreate(ctx context.Context, req *sdk.CallToolRequest, input ScheduleCreateInput) (*sdk.CallToolResult, *schedule.Schedule, error) {
	if s.store == nil {
		return nil, nil, fmt.Errorf("scheduling is not configured")
	}
	if input.Name == "" || input.CronExpr == "" || input.Task == "" {
		return nil, nil, fmt.Errorf("name, cron_expr and task are required")
	}
	if err := validation.ValidateWorkspacePath(input.WorkspacePath); err != nil {
		return nil, nil, err
	}

	rtName := input.Runtime
	if rtName == "" {
		rtName = string(runtime.KindLocal)
	}
	if _, err := s.runtimeFor(rtName); err != nil {
		return nil, nil, err
	}

	sched := &schedule.Schedule{
		Name:            input.Name,
		CronExpr:        input.CronExpr,
		Task:            input.Task,
		WorkspacePath:   input.WorkspacePath,
		Runtime:         rtName,
		Model:           input.Model,
		Enabled:         true,
		OverlapBehavior: schedule.OverlapBehavior(input.OverlapBehavior),
		SessionBehavior: schedule.SessionBehavior(input.SessionBehavior),
	}
	if err := s.store.Create(sched); err != nil {
		return nil, nil, err
	}

	logger.InfoContext(ctx, "Created schedule %s (%s)", sched.ID, sched.Name)
	return nil, sched, nil
}

// ScheduleListInput is the input for the schedule_list tool
type ScheduleListInput struct{}

// ScheduleListOutput is the result of the schedule_list tool
type ScheduleListOutput struct {
	Schedules []*schedule.Schedule `json:"schedules"`
}

func (s *Server) handleScheduleList(ctx context.Context, req *sdk.CallToolRequest, input ScheduleListInput) (*sdk.CallToolResult, ScheduleListOutput, error) {
	if s.store == nil {
		return nil, ScheduleListOutput{}, fmt.Errorf("scheduling is not configured")
	}
	schedules, err := s.store.List()
	if err != nil {
		return nil, ScheduleListOutput{}, err
	}
	return nil, ScheduleListOutput{Schedules: schedules}, nil
}

// ScheduleUpdateInput is the input for the schedule_update tool
type ScheduleUpdateInput struct {
	ScheduleID      string `json:"schedule_id" jsonschema:"id of the schedule to update"`
	Name            string `json:"name,omitempty" jsonschema:"new display name"`
	CronExpr        string `json:"cron_expr,omitempty" jsonschema:"new cron expression"`
	Task            string `json:"task,omitempty" jsonschema:"new task instruction"`
	Enabled         *bool  `json:"enabled,omitempty" jsonschema:"enable or disable the schedule"`
	OverlapBehavior string `json:"overlap_behavior,omitempty" jsonschema:"skip or parallel"`
	SessionBehavior string `json:"session_behavior,omitempty" jsonschema:"resume or new"`
}

func (s *Server) handleScheduleUpdate(ctx context.Context, req *sdk.CallToolRequest, input ScheduleUpdateInput) (*sdk.CallToolResult, *schedule.Schedule, error) {
	if s.store == nil {
		return nil, nil, fmt.Errorf("scheduling is not configured")
	}

	update := &schedule.ScheduleUpdate{Enabled: input.Enabled}
	if input.Name != "" {
		update.Name = &input.Name
	}
	if input.CronExpr != "" {
		update.CronExpr = &input.CronExpr
	}
	if input.Task != "" {
		update.Task = &input.Task
	}
	if input.OverlapBehavior != "" {
		b := schedule.OverlapBehavior(input.OverlapBehavior)
		update.OverlapBehavior = &b
	}
	if input.SessionBehavior != "" {
		b := schedule.SessionBehavior(input.SessionBehavior)
		update.SessionBehavior = &b
	}

	sched, err := s.store.Update(input.ScheduleID, update)
	if err != nil {
		return nil, nil, err
	}
	logger.InfoContext(ctx, "Updated schedule %s (%s)", sched.ID, sched.Name)
	return nil, sched, nil
}

// ScheduleTriggerInput is the input for the schedule_trigger tool
type ScheduleTriggerInput struct {
	ScheduleID string `json:"schedule_id" jsonschema:"id of the schedule to run now"`
}

// ScheduleTriggerOutput is the result of the schedule_trigger tool
type ScheduleTriggerOutput struct {
	Output    string `json:"output"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleScheduleTrigger(ctx context.Context, req *sdk.CallToolRequest, input ScheduleTriggerInput) (*sdk.CallToolResult, ScheduleTriggerOutput, error) {
	if s.store == nil || s.runner == nil {
		return nil, ScheduleTriggerOutput{}, fmt.Errorf("scheduling is not configured")
	}
	sched, err := s.store.Get(input.ScheduleID)
	if err != nil {
		return nil, ScheduleTriggerOutput{}, err
	}

	result, err := s.runner.TriggerNow(sched)
	if err != nil {
		return nil, ScheduleTriggerOutput{}, err
	}
	return nil, ScheduleTriggerOutput{Output: result.Output, SessionID: result.SessionID}, nil
}

// ScheduleHistoryInput is the input for the schedule_history tool
type ScheduleHistoryInput struct {
	ScheduleID string `json:"schedule_id" jsonschema:"id of the schedule"`
	Limit      int    `json:"limit,omitempty" jsonschema:"max executions to return, newest first"`
}

// ScheduleHistoryOutput is the result of the schedule_history tool
type ScheduleHistoryOutput struct {
	Executions []*schedule.Execution `json:"executions"`
}

func (s *Server) handleScheduleHistory(ctx context.Context, req *sdk.CallToolRequest, input ScheduleHistoryInput) (*sdk.CallToolResult, ScheduleHistoryOutput, error) {
	if s.store == nil {
		return nil, ScheduleHistoryOutput{}, fmt.Errorf("scheduling is not configured")
	}
	executions, err := s.store.ListExecutions(input.ScheduleID, input.Limit)
	if err != nil {
		return nil, ScheduleHistoryOutput{}, err
	}
	return nil, ScheduleHistoryOutput{Executions: executions}, nil
}

// ScheduleDeleteInput is the input for the schedule_delete tool
type ScheduleDeleteInput struct {
	ScheduleID string `json:"schedule_id" jsonschema:"id of the schedule to delete"`
}

// ScheduleDeleteOutput is the result of the schedule_delete tool
type ScheduleDeleteOutput struct {
	Status string `json:"status"`
}

func (s *Server) handleScheduleDelete(ctx context.Context, req *sdk.CallToolRequest, input ScheduleDeleteInput) (*sdk.CallToolResult, ScheduleDeleteOutput, error) {
	if s.store == nil {
		return nil, ScheduleDeleteOutput{}, fmt.Errorf("scheduling is not configured")
	}
	if err := s.store.Delete(input.ScheduleID); err != nil {
		return nil, ScheduleDeleteOutput{}, err
	}
	return nil, ScheduleDeleteOutput{Status: "deleted"}, nil
}

// registerTools adds all drawbridge tools to the MCP server
func (s *Server) registerTools() {
	// execute_task gets an explicit schema; its nested tool-server list
	// reads better with curated descriptions.
	executeSchema, err := jsonschema.For[ExecuteTaskInput](nil)
	if err != nil {
		logger.Fatalf("Failed to build execute_task schema: %v", err)
	}

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name: "execute_task",
		Description: `Dispatch a natural-language coding task to an execution runtime.

The task runs against workspace_path. Pass runtime "cloud" to execute on the
remote service with workspace sync through the object store; the default
"local" runs the engine on this machine. Returns the agent's final response
and a session_id that continues the conversation when passed back.`,
		InputSchema: executeSchema,
	}, s.handleExecuteTask)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "workspace_push",
		Description: "Upload a workspace directory to its object-store namespace. The remote copy becomes an exact mirror.",
	}, s.handleWorkspacePush)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "workspace_pull",
		Description: "Download a workspace's object-store namespace into the local directory. A namespace that does not exist yet is a no-op.",
	}, s.handleWorkspacePull)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "sessions_clear",
		Description: "Drop all cached engine thread handles. Engine-side sessions survive and can still be resumed by id.",
	}, s.handleSessionsClear)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "schedule_create",
		Description: "Create a recurring task on a cron schedule, dispatched through the chosen runtime.",
	}, s.handleScheduleCreate)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "schedule_list",
		Description: "List all schedules with their next run times.",
	}, s.handleScheduleList)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "schedule_update",
		Description: "Modify a schedule's name, cron expression, task, enabled state or behaviors. Omitted fields are unchanged.",
	}, s.handleScheduleUpdate)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "schedule_trigger",
		Description: "Run a schedule immediately, ignoring cron timing. The next scheduled run is unaffected.",
	}, s.handleScheduleTrigger)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "schedule_history",
		Description: "List recent executions of a schedule, newest first.",
	}, s.handleScheduleHistory)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "schedule_delete",
		Description: "Delete a schedule and its execution history.",
	}, s.handleScheduleDelete)
}
