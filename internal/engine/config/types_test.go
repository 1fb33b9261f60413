package config

import (
	"strings"
	"testing"
)

func TestValidateStdio(t *testing.T) {
	cfg := &MCPServerConfig{
		Name:    "search",
		Type:    ServerTypeStdio,
		Command: "/usr/local/bin/search-server",
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid stdio config rejected: %v", err)
	}
}

func TestValidateHTTP(t *testing.T) {
	cfg := &MCPServerConfig{
		Name: "remote-api",
		Type: ServerTypeHTTP,
		URL:  "https://api.example.com/mcp",
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid http config rejected: %v", err)
	}
}

func TestValidateRejectsMixedVariants(t *testing.T) {
	tests := []struct {
		name string
		cfg  MCPServerConfig
	}{
		{
			name: "stdio with url",
			cfg:  MCPServerConfig{Name: "a", Type: ServerTypeStdio, Command: "/bin/a", URL: "https://x"},
		},
		{
			name: "http with command",
			cfg:  MCPServerConfig{Name: "b", Type: ServerTypeHTTP, URL: "https://x", Command: "/bin/b"},
		},
		{
			name: "stdio missing command",
			cfg:  MCPServerConfig{Name: "c", Type: ServerTypeStdio},
		},
		{
			name: "http missing url",
			cfg:  MCPServerConfig{Name: "d", Type: ServerTypeHTTP},
		},
		{
			name: "unknown type",
			cfg:  MCPServerConfig{Name: "e", Type: "websocket"},
		},
		{
			name: "missing name",
			cfg:  MCPServerConfig{Type: ServerTypeStdio, Command: "/bin/e"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestToEngineFormatStdio(t *testing.T) {
	cfg := &MCPServerConfig{
		Name:         "search",
		Type:         ServerTypeStdio,
		Command:      "/usr/local/bin/search-server",
		Args:         []string{"--port", "0"},
		Env:          map[string]string{"DEBUG": "1"},
		WorkingDir:   "/srv",
		AllowedTools: []string{"find", "grep"},
	}

	server, err := ToEngineFormat(cfg)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if server.Type != "stdio" {
		t.Errorf("type: got %q", server.Type)
	}
	if server.Command != cfg.Command {
		t.Errorf("command mismatch")
	}
	if server.URL != "" || server.BearerToken != "" {
		t.Error("http fields must not be populated for stdio servers")
	}
	if len(server.AllowedTools) != 2 {
		t.Errorf("allowed tools not copied: %v", server.AllowedTools)
	}
}

func TestToEngineFormatHTTP(t *testing.T) {
	cfg := &MCPServerConfig{
		Name:        "remote-api",
		Type:        ServerTypeHTTP,
		URL:         "https://api.example.com/mcp",
		BearerToken: "tok",
		Headers:     map[string]string{"X-Team": "infra"},
	}

	server, err := ToEngineFormat(cfg)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if server.Type != "http" {
		t.Errorf("type: got %q", server.Type)
	}
	if server.URL != cfg.URL || server.BearerToken != "tok" {
		t.Errorf("http fields mismatch: %+v", server)
	}
	if server.Command != "" || len(server.Args) != 0 {
		t.Error("stdio fields must not be populated for http servers")
	}
}

func TestRenderConfigBlocks(t *testing.T) {
	cfgs := []MCPServerConfig{
		{Name: "My Server!", Type: ServerTypeStdio, Command: "/bin/srv", Args: []string{"-v"}},
		{Name: "my server?", Type: ServerTypeHTTP, URL: "https://one.example.com"},
		{Name: "my_server_", Type: ServerTypeHTTP, URL: "https://two.example.com"},
	}

	out, err := RenderConfigBlocks(cfgs)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	// First-seen keeps the base name, collisions get numeric suffixes.
	for _, want := range []string{
		"[mcp_servers.my_server_]\n",
		"[mcp_servers.my_server__1]\n",
		"[mcp_servers.my_server__2]\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing block header %q in:\n%s", want, out)
		}
	}

	if !strings.Contains(out, `command = "/bin/srv"`) {
		t.Errorf("stdio command missing:\n%s", out)
	}
	if !strings.Contains(out, `url = "https://one.example.com"`) {
		t.Errorf("http url missing:\n%s", out)
	}

	// Ordering: the stdio server was seen first.
	if strings.Index(out, "/bin/srv") > strings.Index(out, "one.example.com") {
		t.Error("first-seen ordering not preserved")
	}
}

func TestRenderConfigBlocksOrdering(t *testing.T) {
	cfgs := []MCPServerConfig{
		{Name: "zeta", Type: ServerTypeHTTP, URL: "https://z"},
		{Name: "alpha", Type: ServerTypeHTTP, URL: "https://a"},
	}

	out, err := RenderConfigBlocks(cfgs)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Index(out, "zeta") > strings.Index(out, "alpha") {
		t.Error("blocks must keep input order, not sort by name")
	}
}

func TestSanitizeServerName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"With Spaces", "with_spaces"},
		{"dots.and/slashes", "dots_and_slashes"},
		{"ok_name-1", "ok_name-1"},
		{"", "server"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeServerName(tt.in); got != tt.want {
				t.Errorf("SanitizeServerName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
