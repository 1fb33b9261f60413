package codexcli

import (
	"os"
	"strings"
	"testing"

	"github.com/HyphaGroup/drawbridge/internal/engine"
	"github.com/HyphaGroup/drawbridge/internal/engine/config"
)

func TestParseEvents(t *testing.T) {
	raw := []byte(`{"type":"thread.started","thread_id":"th_0192"}
{"type":"item.completed","item":{"type":"command_execution","text":"ls"}}
{"type":"item.completed","item":{"type":"agent_message","text":"There are 3 files."}}
{"type":"turn.completed","usage":{"input_tokens":120,"output_tokens":45}}
`)

	out, err := parseEvents(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.ThreadID != "th_0192" {
		t.Errorf("thread id = %q", out.ThreadID)
	}
	if out.FinalResponse != "There are 3 files." {
		t.Errorf("final response = %q", out.FinalResponse)
	}
	if out.InputTokens != 120 || out.OutputTokens != 45 {
		t.Errorf("usage = %d/%d", out.InputTokens, out.OutputTokens)
	}
	if out.NumTurns != 1 {
		t.Errorf("num turns = %d", out.NumTurns)
	}
}

func TestParseEventsSkipsNoise(t *testing.T) {
	raw := []byte(`reading config from ~/.config
{"type":"thread.started","thread_id":"th_1"}
not json at all
{"type":"item.completed","item":{"type":"agent_message","text":"done"}}
{"type":"turn.completed","usage":{"input_tokens":1,"output_tokens":2}}
`)

	out, err := parseEvents(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.FinalResponse != "done" {
		t.Errorf("final response = %q", out.FinalResponse)
	}
}

func TestParseEventsLastMessageWins(t *testing.T) {
	raw := []byte(`{"type":"thread.started","thread_id":"th_2"}
{"type":"item.completed","item":{"type":"agent_message","text":"thinking..."}}
{"type":"turn.completed","usage":{"input_tokens":10,"output_tokens":5}}
{"type":"item.completed","item":{"type":"agent_message","text":"final answer"}}
{"type":"turn.completed","usage":{"input_tokens":20,"output_tokens":8}}
`)

	out, err := parseEvents(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.FinalResponse != "final answer" {
		t.Errorf("final response = %q", out.FinalResponse)
	}
	if out.NumTurns != 2 {
		t.Errorf("num turns = %d, want 2", out.NumTurns)
	}
	if out.InputTokens != 30 || out.OutputTokens != 13 {
		t.Errorf("usage not accumulated: %d/%d", out.InputTokens, out.OutputTokens)
	}
}

func TestParseEventsFailure(t *testing.T) {
	raw := []byte(`{"type":"thread.started","thread_id":"th_3"}
{"type":"turn.failed","error":{"message":"model quota exceeded"}}
`)

	_, err := parseEvents(raw)
	if err == nil {
		t.Fatal("expected error for failed turn")
	}
	if !strings.Contains(err.Error(), "model quota exceeded") {
		t.Errorf("error should carry engine message, got %v", err)
	}
}

func TestParseEventsEmpty(t *testing.T) {
	if _, err := parseEvents(nil); err == nil {
		t.Error("expected error for empty output")
	}
}

func TestBuildArgsNewThread(t *testing.T) {
	eng := &Engine{binary: "/usr/bin/codex", defaultModel: "gpt-5"}
	th := &thread{engine: eng, opts: engine.ThreadOptions{WorkingDir: "/work"}}

	args := th.buildArgs()
	joined := strings.Join(args, " ")
	if !strings.HasPrefix(joined, "exec --json") {
		t.Errorf("args should start with exec --json: %v", args)
	}
	if strings.Contains(joined, "resume") {
		t.Errorf("new thread must not resume: %v", args)
	}
	if !strings.Contains(joined, "-m gpt-5") {
		t.Errorf("default model not applied: %v", args)
	}
	if args[len(args)-1] != "-" {
		t.Errorf("task must be read from stdin: %v", args)
	}
}

func TestBuildArgsResume(t *testing.T) {
	eng := &Engine{binary: "/usr/bin/codex"}
	th := &thread{engine: eng, id: "th_9", opts: engine.ThreadOptions{Model: "o3", WorkingDir: "/work"}}

	joined := strings.Join(th.buildArgs(), " ")
	if !strings.Contains(joined, "resume th_9") {
		t.Errorf("resume id missing: %s", joined)
	}
	if !strings.Contains(joined, "-m o3") {
		t.Errorf("explicit model should override default: %s", joined)
	}
}

func TestWriteToolConfig(t *testing.T) {
	path, cleanup, err := writeToolConfig([]config.MCPServerConfig{
		{Name: "My Search", Type: config.ServerTypeStdio, Command: "/bin/search", Args: []string{"--fast"}},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	defer cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "[mcp_servers.my_search]") {
		t.Errorf("sanitized block header missing:\n%s", content)
	}
	if !strings.Contains(content, `command = "/bin/search"`) {
		t.Errorf("command missing:\n%s", content)
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cleanup should remove the temp config")
	}
}

func TestWriteToolConfigRejectsInvalid(t *testing.T) {
	_, _, err := writeToolConfig([]config.MCPServerConfig{
		{Name: "broken", Type: config.ServerTypeStdio},
	})
	if err == nil {
		t.Error("invalid server config should fail before spawning the engine")
	}
}
