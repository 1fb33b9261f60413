// Package mcp exposes drawbridge over the Model Context Protocol.
//
// server.go - MCP server setup and HTTP plumbing
package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HyphaGroup/drawbridge/internal/logger"
	"github.com/HyphaGroup/drawbridge/internal/metrics"
	"github.com/HyphaGroup/drawbridge/internal/runtime"
	"github.com/HyphaGroup/drawbridge/internal/schedule"
	"github.com/HyphaGroup/drawbridge/internal/storesync"
)

// ServerConfig holds server tuning knobs
type ServerConfig struct {
	// RateLimitRPS bounds tool calls per second per client; 0 disables.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server wires the runtimes, syncer and schedule store into MCP tools
type Server struct {
	cfg      ServerConfig
	runtimes map[runtime.Kind]runtime.Runtime
	syncer   storesync.Syncer
	store    *schedule.Store
	runner   *schedule.Runner

	mcpServer *sdk.Server
}

// NewServer creates a new MCP server instance. The syncer, store and
// runner may be nil when the corresponding feature is disabled.
func NewServer(cfg ServerConfig, runtimes map[runtime.Kind]runtime.Runtime, syncer storesync.Syncer, store *schedule.Store, runner *schedule.Runner) *Server {
	return &Server{
		cfg:      cfg,
		runtimes: runtimes,
		syncer:   syncer,
		store:    store,
		runner:   runner,
	}
}

// runtimeFor resolves a runtime by name, defaulting to local
func (s *Server) runtimeFor(name string) (runtime.Runtime, error) {
	kind := runtime.KindLocal
	if name != "" {
		kind = runtime.Kind(name)
	}
	rt, ok := s.runtimes[kind]
	if !ok {
		return nil, fmt.Errorf("runtime %q is not configured", kind)
	}
	return rt, nil
}

// Close shuts down the server and cleans up resources
func (s *Server) Close() {
	if s.runner != nil {
		s.runner.Stop()
	}
	for _, rt := range s.runtimes {
		if err := rt.Cleanup(); err != nil {
			logger.Error("Runtime cleanup failed: %v", err)
		}
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

// Serve starts the MCP HTTP server
func (s *Server) Serve(addr string) error {
	if s.runner != nil {
		s.runner.Start()
	}

	s.mcpServer = sdk.NewServer(&sdk.Implementation{
		Name:    "drawbridge",
		Version: "0.1.0",
	}, nil)

	s.registerTools()

	mcpHandler := sdk.NewStreamableHTTPHandler(func(req *http.Request) *sdk.Server {
		return s.mcpServer
	}, &sdk.StreamableHTTPOptions{
		EventStore: sdk.NewMemoryEventStore(nil),
	})

	// Request ID and logging middleware
	loggingHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), logger.ContextKeyRequestID, requestID)
		r = r.WithContext(ctx)

		logger.Info("HTTP %s %s from %s [request_id=%s]", r.Method, r.URL.Path, r.RemoteAddr, requestID)
		mcpHandler.ServeHTTP(w, r)
	})

	var handler http.Handler = loggingHandler
	if s.cfg.RateLimitRPS > 0 {
		limiter := NewRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst)
		handler = limiter.Middleware(handler)
	}

	mainMux := http.NewServeMux()

	// Health endpoints - no metrics middleware, scraped constantly
	mainMux.HandleFunc("/health", s.handleHealthCheck)
	mainMux.HandleFunc("/ready", s.handleReadinessCheck)
	mainMux.Handle("/metrics", metrics.Handler())

	mainMux.Handle("/mcp", metrics.Middleware(handler))
	mainMux.Handle("/mcp/", metrics.Middleware(handler))

	logger.Info("Drawbridge MCP server listening on %s", addr)
	logger.Info("Health check: http://localhost%s/health", addr)
	logger.Info("Metrics: http://localhost%s/metrics", addr)
	return http.ListenAndServe(addr, mainMux)
}

// handleHealthCheck is a basic liveness check
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleReadinessCheck verifies the server can serve requests
func (s *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.store != nil {
		if err := s.store.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready","reason":"schedule store unavailable"}`))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
