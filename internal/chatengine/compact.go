package chatengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/shellmind/cli/internal/conversation"
)

// compactedUserMessage is the user half of the pair that replaces the
// history after /compact.
const compactedUserMessage = "I'll compact the conversation"

const defaultCompactPrompt = "Summarize the conversation below so a fresh session can continue it. Keep decisions, open tasks, file paths, and command output that still matters. Reply with only the summary."

// compact runs a single summarization turn over the current history and
// replaces it with a two-message pair carrying the summary.
func (e *Engine) compact(ctx context.Context, args []string) error {
	showSummary := false
	var promptParts []string
	for _, a := range args {
		if a == "--summary" {
			showSummary = true
			continue
		}
		promptParts = append(promptParts, a)
	}
	prompt := defaultCompactPrompt
	if len(promptParts) > 0 {
		prompt = strings.Join(promptParts, " ")
	}

	transcript := e.conv.DescribeForCompaction()
	if strings.TrimSpace(transcript) == "" {
		fmt.Fprintln(e.out, "Nothing to compact.")
		return nil
	}

	req := conversation.Request{
		ConversationID: e.conv.ConversationID(),
		UserInput: conversation.Message{
			Role:    conversation.RoleUser,
			Content: prompt + "\n\n" + transcript,
		},
	}
	chunks, err := e.client.SendMessage(ctx, req)
	if err != nil {
		return err
	}
	var summary strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return chunk.Err
		}
		summary.WriteString(chunk.Text)
	}
	if strings.TrimSpace(summary.String()) == "" {
		return fmt.Errorf("compaction produced an empty summary; history left unchanged")
	}

	e.conv.ReplaceHistory([]conversation.Message{
		{Role: conversation.RoleUser, Content: compactedUserMessage},
		{Role: conversation.RoleAssistant, Content: summary.String()},
	})
	if showSummary {
		fmt.Fprintln(e.out, summary.String())
	} else {
		fmt.Fprintln(e.out, "Conversation compacted.")
	}
	return nil
}
