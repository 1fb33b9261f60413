package codexcli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// turnOutput is the aggregate of one turn's event stream.
type turnOutput struct {
	ThreadID      string
	FinalResponse string
	InputTokens   int
	OutputTokens  int
	NumTurns      int
}

type event struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
	Item     struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"item,omitempty"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// parseEvents folds a JSONL event stream into a turn result. Non-JSON
// lines are skipped; the CLI interleaves progress noise with events.
func parseEvents(raw []byte) (*turnOutput, error) {
	var out turnOutput

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}

		var ev event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "thread.started":
			out.ThreadID = ev.ThreadID
		case "item.completed":
			if ev.Item.Type == "agent_message" {
				out.FinalResponse = ev.Item.Text
			}
		case "turn.completed":
			out.NumTurns++
			out.InputTokens += ev.Usage.InputTokens
			out.OutputTokens += ev.Usage.OutputTokens
		case "turn.failed", "error":
			msg := ev.Error.Message
			if msg == "" {
				msg = "turn failed"
			}
			return nil, fmt.Errorf("engine reported failure: %s", msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read engine output: %w", err)
	}

	if out.NumTurns == 0 && out.FinalResponse == "" {
		return nil, fmt.Errorf("engine produced no completion events")
	}
	return &out, nil
}
