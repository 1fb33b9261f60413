package config

import (
	"fmt"
	"sort"
	"strings"
)

// RenderConfigBlocks produces a textual configuration fragment, one
// [mcp_servers.<name>] block per server, for engines configured through
// a static config document. Server names are sanitized and de-duplicated
// with _1, _2, ... suffixes, preserving first-seen order.
func RenderConfigBlocks(cfgs []MCPServerConfig) (string, error) {
	var b strings.Builder
	used := make(map[string]bool)

	for i := range cfgs {
		cfg := &cfgs[i]
		if err := cfg.Validate(); err != nil {
			return "", err
		}

		name := uniqueName(SanitizeServerName(cfg.Name), used)
		used[name] = true

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[mcp_servers.%s]\n", name)

		switch cfg.Type {
		case ServerTypeStdio:
			fmt.Fprintf(&b, "command = %q\n", cfg.Command)
			if len(cfg.Args) > 0 {
				fmt.Fprintf(&b, "args = [%s]\n", quoteList(cfg.Args))
			}
			if cfg.WorkingDir != "" {
				fmt.Fprintf(&b, "cwd = %q\n", cfg.WorkingDir)
			}
			if len(cfg.Env) > 0 {
				fmt.Fprintf(&b, "env = { %s }\n", quoteMap(cfg.Env))
			}
		case ServerTypeHTTP:
			fmt.Fprintf(&b, "url = %q\n", cfg.URL)
			if cfg.BearerToken != "" {
				fmt.Fprintf(&b, "bearer_token = %q\n", cfg.BearerToken)
			}
			if len(cfg.Headers) > 0 {
				fmt.Fprintf(&b, "http_headers = { %s }\n", quoteMap(cfg.Headers))
			}
			if cfg.SessionTimeout > 0 {
				fmt.Fprintf(&b, "session_timeout_ms = %d\n", cfg.SessionTimeout.Milliseconds())
			}
		}

		if len(cfg.AllowedTools) > 0 {
			fmt.Fprintf(&b, "enabled_tools = [%s]\n", quoteList(cfg.AllowedTools))
		}
		if cfg.StartupTimeout > 0 {
			fmt.Fprintf(&b, "startup_timeout_ms = %d\n", cfg.StartupTimeout.Milliseconds())
		}
		if cfg.ToolTimeout > 0 {
			fmt.Fprintf(&b, "tool_timeout_ms = %d\n", cfg.ToolTimeout.Milliseconds())
		}
	}

	return b.String(), nil
}

// SanitizeServerName lowercases a server name and replaces characters
// outside [a-z0-9_-] with underscores.
func SanitizeServerName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		isSafe := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if isSafe {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "server"
	}
	return b.String()
}

// uniqueName appends _1, _2, ... until the name is unused.
func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !used[candidate] {
			return candidate
		}
	}
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}

func quoteMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%q = %q", k, m[k])
	}
	return strings.Join(pairs, ", ")
}
