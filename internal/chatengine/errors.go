package chatengine

import (
	"errors"

	"github.com/shellmind/cli/internal/auth"
	"github.com/shellmind/cli/internal/llmclient"
)

// Engine-local error kinds. Transport and provider kinds live with the
// packages that raise them; these cover the tool pipeline and turn
// handling.
var (
	// ErrToolValidation: tool arguments failed validation; reported back
	// to the model as an error-status tool result so it can correct.
	ErrToolValidation = errors.New("chatengine: tool argument validation failed")
	// ErrToolExecution: the tool ran and failed; same treatment.
	ErrToolExecution = errors.New("chatengine: tool execution failed")
	// ErrInterrupted: the user aborted the current operation.
	ErrInterrupted = errors.New("chatengine: interrupted")
)

// RecoveryHint maps an error onto the one-line hint printed under it, or
// "" when there is nothing actionable.
func RecoveryHint(err error) string {
	switch {
	case errors.Is(err, llmclient.ErrContextWindowOverflow):
		return "The conversation no longer fits the model's context window. Run /compact to summarize it."
	case errors.Is(err, llmclient.ErrAuthExpired), errors.Is(err, auth.ErrNotAuthenticated):
		return "Your session has expired. Run /quit and then `shellmind login`."
	case errors.Is(err, llmclient.ErrModelOverloaded):
		return "The model is overloaded right now; try the same message again."
	case errors.Is(err, llmclient.ErrQuotaBreach):
		return "You have hit the request quota. The session stays open; try again later."
	}
	return ""
}
