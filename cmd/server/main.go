package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/HyphaGroup/drawbridge/internal/config"
	"github.com/HyphaGroup/drawbridge/internal/engine"
	"github.com/HyphaGroup/drawbridge/internal/engine/codexcli"
	"github.com/HyphaGroup/drawbridge/internal/logger"
	"github.com/HyphaGroup/drawbridge/internal/mcp"
	"github.com/HyphaGroup/drawbridge/internal/runtime"
	"github.com/HyphaGroup/drawbridge/internal/schedule"
	"github.com/HyphaGroup/drawbridge/internal/storesync"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	dirFlag := flag.String("dir", ".", "Directory containing drawbridge.jsonc")
	flag.Parse()

	if *showVersion {
		fmt.Printf("drawbridge %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.LoadDir(*dirFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "drawbridge: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(filepath.Join(*dirFlag, cfg.Server.LogDir)); err != nil {
		fmt.Fprintf(os.Stderr, "drawbridge: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Close() }()

	logger.Info("Starting drawbridge %s", Version)

	client := engine.NewClient(codexcli.Factory(codexcli.Config{
		Binary:       cfg.Engine.Binary,
		DefaultModel: cfg.Engine.DefaultModel,
	}))

	runtimes := map[runtime.Kind]runtime.Runtime{
		runtime.KindLocal: runtime.NewLocalRuntime(client),
	}

	var syncer storesync.Syncer
	if cfg.Sync.Remote != "" && cfg.Sync.Bucket != "" {
		syncer = storesync.NewRcloneSyncer(storesync.Config{
			Remote: cfg.Sync.Remote,
			Bucket: cfg.Sync.Bucket,
			Binary: cfg.Sync.Binary,
		})
	}

	if cfg.Cloud.Endpoint != "" {
		cloud, err := runtime.NewCloudRuntime(runtime.CloudConfig{
			Endpoint: cfg.Cloud.Endpoint,
			APIKey:   cfg.Cloud.APIKey,
			Timeout:  cfg.Cloud.Timeout(),
			SkipSync: cfg.Cloud.SkipSync,
		}, syncer)
		if err != nil {
			logger.Fatalf("Cloud runtime unavailable: %v", err)
		}
		runtimes[runtime.KindCloud] = cloud
	}

	store, err := schedule.NewStore(filepath.Join(*dirFlag, cfg.Server.DataDir))
	if err != nil {
		logger.Fatalf("Failed to open schedule store: %v", err)
	}

	runner := schedule.NewRunner(store, func(ctx context.Context, sched *schedule.Schedule) (*runtime.ExecutionResult, error) {
		rt, ok := runtimes[runtime.Kind(sched.Runtime)]
		if !ok {
			return nil, fmt.Errorf("schedule %s targets unconfigured runtime %q", sched.ID, sched.Runtime)
		}
		sessionID := sched.SessionID
		if sched.SessionBehavior == schedule.SessionNew {
			sessionID = ""
		}
		return rt.Execute(ctx, &runtime.ExecutionConfig{
			AgentKind:     runtime.AgentKindCode,
			Task:          sched.Task,
			WorkspacePath: sched.WorkspacePath,
			SessionID:     sessionID,
			Model:         sched.Model,
		})
	})

	server := mcp.NewServer(mcp.ServerConfig{
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	}, runtimes, syncer, store, runner)

	// Shut down cleanly on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received %s, shutting down", sig)
		server.Close()
		_ = logger.Close()
		os.Exit(0)
	}()

	if err := server.Serve(cfg.Server.Address); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}
