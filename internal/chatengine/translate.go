package chatengine

import (
	"context"
	"errors"
	"strings"

	"github.com/shellmind/cli/internal/conversation"
	"github.com/shellmind/cli/internal/llmclient"
)

// ErrNoCompletion means the model produced no usable command for the
// translate one-shot; callers exit non-zero.
var ErrNoCompletion = errors.New("chatengine: no completion produced")

const translatePrompt = "Translate the following request into a single POSIX shell command. Reply with only the command, no explanation, no code fences."

// Translate is the one-shot natural-language-to-shell-command path. It
// runs a single turn and returns the first non-empty line of the reply.
func Translate(ctx context.Context, client llmclient.Client, text string) (string, error) {
	req := conversation.Request{
		ConversationID: conversation.NewConversation().ConversationID(),
		UserInput: conversation.Message{
			Role:    conversation.RoleUser,
			Content: translatePrompt + "\n\n" + text,
		},
	}
	chunks, err := client.SendMessage(ctx, req)
	if err != nil {
		return "", err
	}
	var reply strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		reply.WriteString(chunk.Text)
	}
	for _, line := range strings.Split(reply.String(), "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "`"))
		if line != "" {
			return line, nil
		}
	}
	return "", ErrNoCompletion
}
