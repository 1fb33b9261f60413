// drawbridge is a one-shot CLI for dispatching a single task.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/HyphaGroup/drawbridge/internal/config"
	"github.com/HyphaGroup/drawbridge/internal/engine"
	"github.com/HyphaGroup/drawbridge/internal/engine/codexcli"
	"github.com/HyphaGroup/drawbridge/internal/logger"
	"github.com/HyphaGroup/drawbridge/internal/runtime"
	"github.com/HyphaGroup/drawbridge/internal/storesync"
)

func main() {
	dirFlag := flag.String("dir", ".", "Directory containing drawbridge.jsonc")
	runtimeFlag := flag.String("runtime", "local", "Execution runtime: local or cloud")
	workspaceFlag := flag.String("workspace", ".", "Workspace directory the task operates on")
	sessionFlag := flag.String("session", "", "Session ID to continue a prior conversation")
	modelFlag := flag.String("model", "", "Model override")
	flag.Parse()

	task := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if task == "" {
		fmt.Fprintln(os.Stderr, "usage: drawbridge [flags] <task...>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.LoadDir(*dirFlag)
	if err != nil {
		fatal(err)
	}
	if err := logger.Init(cfg.Server.LogDir); err != nil {
		fatal(err)
	}
	defer func() { _ = logger.Close() }()

	rt, err := buildRuntime(cfg, *runtimeFlag)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = rt.Cleanup() }()

	result, err := rt.Execute(context.Background(), &runtime.ExecutionConfig{
		AgentKind:     runtime.AgentKindCode,
		Task:          task,
		WorkspacePath: *workspaceFlag,
		SessionID:     *sessionFlag,
		Model:         *modelFlag,
	})
	if err != nil {
		fatal(err)
	}

	fmt.Println(result.Output)
	fmt.Fprintf(os.Stderr, "session: %s\n", result.SessionID)
}

func buildRuntime(cfg *config.Config, kind string) (runtime.Runtime, error) {
	switch runtime.Kind(kind) {
	case runtime.KindLocal:
		client := engine.NewClient(codexcli.Factory(codexcli.Config{
			Binary:       cfg.Engine.Binary,
			DefaultModel: cfg.Engine.DefaultModel,
		}))
		return runtime.NewLocalRuntime(client), nil

	case runtime.KindCloud:
		var syncer storesync.Syncer
		if !cfg.Cloud.SkipSync {
			syncer = storesync.NewRcloneSyncer(storesync.Config{
				Remote: cfg.Sync.Remote,
				Bucket: cfg.Sync.Bucket,
				Binary: cfg.Sync.Binary,
			})
		}
		return runtime.NewCloudRuntime(runtime.CloudConfig{
			Endpoint: cfg.Cloud.Endpoint,
			APIKey:   cfg.Cloud.APIKey,
			Timeout:  cfg.Cloud.Timeout(),
			SkipSync: cfg.Cloud.SkipSync,
		}, syncer)

	default:
		return nil, fmt.Errorf("unknown runtime %q (expected local or cloud)", kind)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "drawbridge: %v\n", err)
	os.Exit(1)
}
