// Package config provides the canonical tool-server configuration type
// and translation to the formats the execution engine consumes.
package config

import (
	"fmt"
	"time"
)

// ServerType discriminates the two tool-server variants. The tag is
// explicit: a descriptor is never classified by which fields happen to
// be set.
type ServerType string

const (
	// ServerTypeStdio is a locally spawned subprocess server.
	ServerTypeStdio ServerType = "stdio"
	// ServerTypeHTTP is a remote HTTP server.
	ServerTypeHTTP ServerType = "http"
)

// MCPServerConfig is the canonical descriptor for an external tool
// server. Exactly one variant's fields apply, selected by Type.
type MCPServerConfig struct {
	Name string     `json:"name"`
	Type ServerType `json:"type"`

	// stdio variant
	Command    string            `json:"command,omitempty"`
	Args       []string          `json:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty"`

	// http variant
	URL            string            `json:"url,omitempty"`
	BearerToken    string            `json:"bearer_token,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	SessionTimeout time.Duration     `json:"session_timeout,omitempty"`

	// shared
	AllowedTools   []string      `json:"allowed_tools,omitempty"`
	StartupTimeout time.Duration `json:"startup_timeout,omitempty"`
	ToolTimeout    time.Duration `json:"tool_timeout,omitempty"`
}

// Validate checks that the descriptor carries the fields its tag requires.
func (c *MCPServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("tool server name is required")
	}
	switch c.Type {
	case ServerTypeStdio:
		if c.Command == "" {
			return fmt.Errorf("tool server %q: command is required for stdio servers", c.Name)
		}
		if c.URL != "" {
			return fmt.Errorf("tool server %q: url is not valid for stdio servers", c.Name)
		}
	case ServerTypeHTTP:
		if c.URL == "" {
			return fmt.Errorf("tool server %q: url is required for http servers", c.Name)
		}
		if c.Command != "" {
			return fmt.Errorf("tool server %q: command is not valid for http servers", c.Name)
		}
	default:
		return fmt.Errorf("tool server %q: unknown type %q", c.Name, c.Type)
	}
	return nil
}
