package chatengine

import (
	"encoding/json"
	"strings"

	"github.com/shellmind/cli/internal/conversation"
	"github.com/shellmind/cli/internal/llmclient"
)

// PendingToolCall is a fully accumulated model-requested tool invocation
// awaiting confirmation and execution.
type PendingToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// toolCallAccumulator assembles streamed tool-use chunks: a start opens
// a call, deltas append JSON fragments, a stop seals it.
type toolCallAccumulator struct {
	calls   []PendingToolCall
	current *PendingToolCall
	input   strings.Builder
}

func (a *toolCallAccumulator) feed(chunk llmclient.Chunk) {
	switch {
	case chunk.ToolUseStart != nil:
		a.current = &PendingToolCall{ID: chunk.ToolUseStart.ID, Name: chunk.ToolUseStart.Name}
		a.input.Reset()
	case chunk.ToolUseDelta != "":
		if a.current != nil {
			a.input.WriteString(chunk.ToolUseDelta)
		}
	case chunk.ToolUseStop:
		if a.current != nil {
			raw := a.input.String()
			if raw == "" {
				raw = "{}"
			}
			a.current.Input = json.RawMessage(raw)
			a.calls = append(a.calls, *a.current)
			a.current = nil
		}
	}
}

// finish seals a call the stream left open and returns everything
// accumulated.
func (a *toolCallAccumulator) finish() []PendingToolCall {
	if a.current != nil {
		raw := a.input.String()
		if raw == "" {
			raw = "{}"
		}
		a.current.Input = json.RawMessage(raw)
		a.calls = append(a.calls, *a.current)
		a.current = nil
	}
	return a.calls
}

// toolUses converts accumulated calls into history tool-use records.
func toolUses(calls []PendingToolCall) []conversation.ToolUse {
	uses := make([]conversation.ToolUse, 0, len(calls))
	for _, c := range calls {
		var input map[string]any
		if err := json.Unmarshal(c.Input, &input); err != nil {
			input = map[string]any{}
		}
		uses = append(uses, conversation.ToolUse{ID: c.ID, Name: c.Name, Input: input})
	}
	return uses
}
