package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/shellmind/cli/internal/conversation"
)

// MockResponseEnv points at a JSON fixture of scripted turns; when set,
// the chat engine swaps the real provider for a Mock so end-to-end runs
// need no network or credentials.
const MockResponseEnv = "Q_MOCK_CHAT_RESPONSE"

// MockTurn scripts the chunks one SendMessage call will replay.
type MockTurn struct {
	MessageID string         `json:"message_id,omitempty"`
	Events    []MockEvent    `json:"events"`
	Err       *MockErrorKind `json:"error,omitempty"`
}

// MockEvent is one scripted chunk.
type MockEvent struct {
	Text         string `json:"text,omitempty"`
	ToolUseID    string `json:"tool_use_id,omitempty"`
	ToolUseName  string `json:"tool_use_name,omitempty"`
	ToolUseInput string `json:"tool_use_input,omitempty"`
}

// MockErrorKind selects a sentinel error by name.
type MockErrorKind string

const (
	MockErrQuota    MockErrorKind = "quota"
	MockErrOverflow MockErrorKind = "context_overflow"
	MockErrOverload MockErrorKind = "overloaded"
	MockErrAuth     MockErrorKind = "auth_expired"
)

func (k MockErrorKind) sentinel() error {
	switch k {
	case MockErrQuota:
		return ErrQuotaBreach
	case MockErrOverflow:
		return ErrContextWindowOverflow
	case MockErrOverload:
		return ErrModelOverloaded
	case MockErrAuth:
		return ErrAuthExpired
	}
	return fmt.Errorf("llmclient: scripted error %q", string(k))
}

// Mock replays a scripted sequence of turns, one per SendMessage call.
// It also records every request so tests can assert on payloads.
type Mock struct {
	mu       sync.Mutex
	turns    []MockTurn
	next     int
	Requests []conversation.Request
	Profiles []string
}

// NewMock builds a mock that replays turns in order. Calls past the end
// replay an empty done-only turn.
func NewMock(turns ...MockTurn) *Mock {
	return &Mock{turns: turns}
}

// LoadMockFromEnv reads the fixture file named by MockResponseEnv.
// Returns (nil, nil) when the variable is unset.
func LoadMockFromEnv() (*Mock, error) {
	path := os.Getenv(MockResponseEnv)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("llmclient: read mock fixture: %w", err)
	}
	var turns []MockTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("llmclient: parse mock fixture: %w", err)
	}
	return NewMock(turns...), nil
}

// SendMessage replays the next scripted turn.
func (m *Mock) SendMessage(_ context.Context, req conversation.Request) (<-chan Chunk, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	var turn MockTurn
	if m.next < len(m.turns) {
		turn = m.turns[m.next]
		m.next++
	}
	m.mu.Unlock()

	chunks := make(chan Chunk, len(turn.Events)*3+2)
	go func() {
		defer close(chunks)
		if turn.MessageID != "" {
			chunks <- Chunk{MessageID: turn.MessageID}
		}
		for _, ev := range turn.Events {
			if ev.Text != "" {
				chunks <- Chunk{Text: ev.Text}
			}
			if ev.ToolUseName != "" {
				chunks <- Chunk{ToolUseStart: &ToolUseStart{ID: ev.ToolUseID, Name: ev.ToolUseName}}
				if ev.ToolUseInput != "" {
					chunks <- Chunk{ToolUseDelta: ev.ToolUseInput}
				}
				chunks <- Chunk{ToolUseStop: true}
			}
		}
		if turn.Err != nil {
			chunks <- Chunk{Err: turn.Err.sentinel()}
			return
		}
		chunks <- Chunk{Done: true}
	}()
	return chunks, nil
}

// SendTelemetry records nothing and never fails.
func (m *Mock) SendTelemetry(context.Context, TelemetryEvent) error { return nil }

// ListProfiles returns the configured profile list.
func (m *Mock) ListProfiles(context.Context) ([]string, error) {
	return m.Profiles, nil
}
