package config

import (
	"fmt"
	"time"
)

// EngineToolServer is the engine-native tool-server record passed to
// thread options on start/resume.
type EngineToolServer struct {
	Name           string            `json:"name"`
	Type           string            `json:"type"` // stdio, http
	Command        string            `json:"command,omitempty"`
	Args           []string          `json:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	WorkingDir     string            `json:"cwd,omitempty"`
	URL            string            `json:"url,omitempty"`
	BearerToken    string            `json:"bearer_token,omitempty"`
	Headers        map[string]string `json:"http_headers,omitempty"`
	SessionTimeout time.Duration     `json:"session_timeout,omitempty"`
	AllowedTools   []string          `json:"enabled_tools,omitempty"`
	StartupTimeout time.Duration     `json:"startup_timeout,omitempty"`
	ToolTimeout    time.Duration     `json:"tool_timeout,omitempty"`
}

// ToEngineFormat converts a canonical descriptor to the engine-native
// record. The variants are mapped exhaustively: stdio fields and http
// fields are never mixed in one record.
func ToEngineFormat(cfg *MCPServerConfig) (*EngineToolServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	server := &EngineToolServer{
		Name:           cfg.Name,
		AllowedTools:   cfg.AllowedTools,
		StartupTimeout: cfg.StartupTimeout,
		ToolTimeout:    cfg.ToolTimeout,
	}

	switch cfg.Type {
	case ServerTypeStdio:
		server.Type = "stdio"
		server.Command = cfg.Command
		server.Args = cfg.Args
		server.Env = cfg.Env
		server.WorkingDir = cfg.WorkingDir
	case ServerTypeHTTP:
		server.Type = "http"
		server.URL = cfg.URL
		server.BearerToken = cfg.BearerToken
		server.Headers = cfg.Headers
		server.SessionTimeout = cfg.SessionTimeout
	default:
		return nil, fmt.Errorf("tool server %q: unknown type %q", cfg.Name, cfg.Type)
	}

	return server, nil
}

// ToEngineServers converts a list of canonical descriptors, failing on
// the first invalid one.
func ToEngineServers(cfgs []MCPServerConfig) ([]EngineToolServer, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	servers := make([]EngineToolServer, 0, len(cfgs))
	for i := range cfgs {
		server, err := ToEngineFormat(&cfgs[i])
		if err != nil {
			return nil, err
		}
		servers = append(servers, *server)
	}
	return servers, nil
}
