// Package llmclient is the streaming chat capability the engine talks
// to. A Client turns one conversation request into a channel of chunks:
// text deltas, tool-use progress, and a terminal done-or-error marker.
// Tests and the Q_MOCK_CHAT_RESPONSE fixture path substitute a scripted
// mock for the real providers.
package llmclient

import (
	"context"

	"github.com/shellmind/cli/internal/conversation"
)

// Chunk is one streamed event from the model.
type Chunk struct {
	// MessageID is set once, on the first chunk of a response.
	MessageID string
	// Text is an assistant text delta.
	Text string
	// ToolUseStart opens a tool invocation; its JSON input follows in
	// ToolUseDelta chunks until ToolUseStop.
	ToolUseStart *ToolUseStart
	// ToolUseDelta is a fragment of the pending tool use's JSON input.
	ToolUseDelta string
	// ToolUseStop closes the pending tool invocation.
	ToolUseStop bool
	// Done marks a successfully completed response.
	Done bool
	// Err terminates the stream with a failure.
	Err error
}

// ToolUseStart identifies a model-requested tool invocation.
type ToolUseStart struct {
	ID   string
	Name string
}

// TelemetryEvent is an opaque usage event forwarded to the host.
type TelemetryEvent struct {
	Name       string
	Properties map[string]string
}

// Client is the remote AI capability.
type Client interface {
	// SendMessage starts one streaming turn. The returned channel is
	// closed after a Done or Err chunk.
	SendMessage(ctx context.Context, req conversation.Request) (<-chan Chunk, error)
	// SendTelemetry forwards a usage event; failures are advisory.
	SendTelemetry(ctx context.Context, ev TelemetryEvent) error
	// ListProfiles returns the server-known profile names.
	ListProfiles(ctx context.Context) ([]string, error)
}
