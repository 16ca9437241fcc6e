// Package conversation maintains the in-memory chat history the chat
// engine sends to the model on every turn: truncation to a bounded length,
// the "first message must be a plain user message" and "last message must
// be assistant" invariants, tool-use/result correlation, and cancelled
// tool-result synthesis when a turn is abandoned mid-flight.
package conversation

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolUse is an assistant-issued tool invocation embedded in a message.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult is the correlated result of a ToolUse, embedded in the next
// user message.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// Message is one turn of conversation history. ID is set on assistant
// messages from the server-assigned message id; user messages leave it
// empty.
type Message struct {
	ID          string
	Role        Role
	Content     string
	ToolUses    []ToolUse
	ToolResults []ToolResult
}

// HasToolResults reports whether m carries any tool results.
func (m Message) HasToolResults() bool { return len(m.ToolResults) > 0 }

// HasToolUses reports whether m carries any tool uses.
func (m Message) HasToolUses() bool { return len(m.ToolUses) > 0 }

// MaxHistoryLength bounds the number of messages kept in history, leaving
// room for the two synthesized context messages prepended at send time.
const MaxHistoryLength = 100

const effectiveMaxHistory = MaxHistoryLength - 2
