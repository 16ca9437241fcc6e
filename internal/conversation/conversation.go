package conversation

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNothingStaged is returned by AsSendable when no user message has been
// staged since the last send.
var ErrNothingStaged = errors.New("conversation: no staged user message")

// overflowMarker replaces staged tool results when the history had to be
// cleared entirely: the tool-use ids they answer no longer exist server-side.
const overflowMarker = "The conversation history has overflowed and was cleared. Continuing from here."

// CancelledToolResultText is the body of a synthesized tool result for a
// tool use the user never answered.
const CancelledToolResultText = "Tool use was cancelled by the user"

// ToolSpec describes one tool advertised to the model on each request.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Request is the materialized payload for one model call.
type Request struct {
	ConversationID string
	UserInput      Message
	History        []Message
	ToolSpecs      []ToolSpec
}

// Conversation owns a single chat session: its server-visible id, the
// bounded history, the staged next user message, and the tool specs
// advertised on every request. All methods must be called from the chat
// engine goroutine; Conversation performs no internal locking.
type Conversation struct {
	id        string
	state     *State
	next      *Message
	sentUser  *Message
	toolSpecs []ToolSpec
	profile   string
}

// NewConversation creates an empty conversation with a fresh random id and
// the "default" profile active.
func NewConversation() *Conversation {
	return &Conversation{
		id:      newConversationID(),
		state:   New(),
		profile: "default",
	}
}

const conversationIDLength = 9

func newConversationID() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, conversationIDLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// a constant id still produces a working, if unshared, session.
		return "000000000"
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}

// ConversationID returns the stable 9-character session id.
func (c *Conversation) ConversationID() string { return c.id }

// CurrentProfile returns the name of the active context profile.
func (c *Conversation) CurrentProfile() string { return c.profile }

// SetProfile records the active context profile name.
func (c *Conversation) SetProfile(name string) { c.profile = name }

// SetTools replaces the tool specs advertised on subsequent requests.
func (c *Conversation) SetTools(specs []ToolSpec) { c.toolSpecs = specs }

// History returns the current fixed history. The returned slice is owned
// by the conversation and must not be mutated.
func (c *Conversation) History() []Message { return c.state.History }

// AppendUserMessage stages text as the next user turn. Any previously
// staged message is replaced.
func (c *Conversation) AppendUserMessage(text string) {
	c.next = &Message{Role: RoleUser, Content: text}
}

// AddToolResults stages a next user message carrying only tool results.
func (c *Conversation) AddToolResults(results []ToolResult) {
	c.next = &Message{Role: RoleUser, ToolResults: results}
}

// AbandonToolUse stages error-status results for the given tool-use ids,
// carrying the user's rejection text so the model knows why.
func (c *Conversation) AbandonToolUse(ids []string, denyText string) {
	results := make([]ToolResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, ToolResult{
			ToolUseID: id,
			Content:   denyText,
			IsError:   true,
		})
	}
	c.next = &Message{Role: RoleUser, ToolResults: results}
}

// PushAssistantMessage moves a completed assistant reply into history,
// together with the user message that prompted it.
func (c *Conversation) PushAssistantMessage(msg Message) {
	if c.sentUser != nil {
		c.state.History = append(c.state.History, *c.sentUser)
		c.sentUser = nil
	}
	msg.Role = RoleAssistant
	c.state.History = append(c.state.History, msg)
}

// LastMessageID returns the id of the most recent assistant message, or ""
// if none exists.
func (c *Conversation) LastMessageID() string {
	for i := len(c.state.History) - 1; i >= 0; i-- {
		if c.state.History[i].Role == RoleAssistant {
			return c.state.History[i].ID
		}
	}
	return ""
}

// Clear drops the history and any staged message, keeping the id and
// profile so the session identity survives a /clear.
func (c *Conversation) Clear() {
	c.state.History = nil
	c.next = nil
	c.sentUser = nil
}

// ReplaceHistory swaps the entire history, used by /compact to install the
// two-message summary pair.
func (c *Conversation) ReplaceHistory(history []Message) {
	c.state.History = history
	c.next = nil
	c.sentUser = nil
}

// AsSendable fixes the history, consumes the staged next message, and
// returns the request payload for one model call. Context files, when
// present, are carried as a synthetic user/assistant pair at the head of
// the history, occupying the two slots the truncation budget reserves.
func (c *Conversation) AsSendable(files []ContextFile) (Request, error) {
	if c.next == nil {
		return Request{}, ErrNothingStaged
	}
	c.fixHistory()

	next := *c.next
	c.next = nil
	c.sentUser = &next

	history := make([]Message, 0, len(c.state.History)+2)
	if len(files) > 0 {
		ctxUser, ctxAssistant := RenderContextMessages(files)
		history = append(history, ctxUser, ctxAssistant)
	}
	history = append(history, c.state.History...)

	return Request{
		ConversationID: c.id,
		UserInput:      next,
		History:        history,
		ToolSpecs:      c.toolSpecs,
	}, nil
}

// fixHistory enforces the send-time invariants:
//  1. History is truncated to the bounded length, dropping from the front
//     up to the first user message carrying no tool results. If none
//     exists the history is cleared entirely, and staged tool results are
//     replaced with an overflow marker since the uses they answer are gone.
//  2. A trailing user message is dropped; history must end on an
//     assistant turn.
//  3. If the last assistant message has tool uses, the staged next message
//     must answer each of them; missing results are synthesized as
//     cancelled so the remote state machine never sees an orphaned use.
func (c *Conversation) fixHistory() {
	c.state.truncate()
	c.state.dropTrailingUser()
	if len(c.state.History) == 0 && c.next != nil && c.next.HasToolResults() {
		c.next = &Message{Role: RoleUser, Content: overflowMarker}
	}
	c.reconcileToolResults()
}

// reconcileToolResults pairs the staged message's tool results against the
// last assistant message's tool uses, synthesizing cancelled results for
// any use left unanswered and discarding results for unknown ids.
func (c *Conversation) reconcileToolResults() {
	history := c.state.History
	if len(history) == 0 {
		return
	}
	last := history[len(history)-1]
	if last.Role != RoleAssistant || !last.HasToolUses() {
		return
	}

	var staged []ToolResult
	if c.next != nil {
		staged = c.next.ToolResults
	}
	byID := make(map[string]ToolResult, len(staged))
	for _, r := range staged {
		byID[r.ToolUseID] = r
	}

	results := make([]ToolResult, 0, len(last.ToolUses))
	for _, tu := range last.ToolUses {
		if r, ok := byID[tu.ID]; ok {
			results = append(results, r)
			continue
		}
		results = append(results, ToolResult{
			ToolUseID: tu.ID,
			Content:   CancelledToolResultText,
			IsError:   true,
		})
	}

	if c.next == nil {
		c.next = &Message{Role: RoleUser}
	}
	c.next.ToolResults = results
}

// DescribeForCompaction renders the history as a plain-text transcript for
// the /compact summarization turn.
func (c *Conversation) DescribeForCompaction() string {
	out := ""
	for _, m := range c.state.History {
		role := "User"
		if m.Role == RoleAssistant {
			role = "Assistant"
		}
		content := m.Content
		if content == "" && m.HasToolResults() {
			content = fmt.Sprintf("[%d tool result(s)]", len(m.ToolResults))
		}
		if content == "" && m.HasToolUses() {
			content = fmt.Sprintf("[%d tool use(s)]", len(m.ToolUses))
		}
		out += role + ": " + content + "\n"
	}
	return out
}
