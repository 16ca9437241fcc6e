package chatengine

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shellmind/cli/internal/conversation"
	"github.com/shellmind/cli/internal/fsshim"
	"github.com/shellmind/cli/internal/llmclient"
	"github.com/shellmind/cli/internal/tools"
)

func newTestEngine(t *testing.T, mock *llmclient.Mock, input string) (*Engine, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	e := New(Options{
		Client:        mock,
		Registry:      tools.NewBuiltinRegistry(fsshim.NewMem()),
		Input:         strings.NewReader(input),
		Output:        &out,
		TerminalWidth: 0,
	})
	return e, &out
}

func TestChatTurnRendersAssistantText(t *testing.T) {
	mock := llmclient.NewMock(llmclient.MockTurn{
		MessageID: "m1",
		Events:    []llmclient.MockEvent{{Text: "hi there"}},
	})
	e, out := newTestEngine(t, mock, "")

	require.NoError(t, e.chatTurn(context.Background(), "say hi"))
	require.Contains(t, out.String(), "hi there")

	h := e.Conversation().History()
	require.Len(t, h, 2)
	require.Equal(t, "m1", e.Conversation().LastMessageID())
}

// Denying a tool call sends exactly one error-status result carrying the
// cancellation text.
func TestToolDenialProducesCancelledResult(t *testing.T) {
	mock := llmclient.NewMock(
		llmclient.MockTurn{Events: []llmclient.MockEvent{
			{ToolUseID: "tu1", ToolUseName: "execute_bash", ToolUseInput: `{"command":"rm -rf /tmp/*"}`},
		}},
		llmclient.MockTurn{Events: []llmclient.MockEvent{{Text: "understood"}}},
	)
	e, out := newTestEngine(t, mock, "n\n")

	require.NoError(t, e.chatTurn(context.Background(), "delete everything under /tmp"))

	require.Len(t, mock.Requests, 2)
	second := mock.Requests[1]
	require.Len(t, second.UserInput.ToolResults, 1)
	tr := second.UserInput.ToolResults[0]
	require.Equal(t, "tu1", tr.ToolUseID)
	require.True(t, tr.IsError)
	require.Equal(t, "Tool use was cancelled by the user", tr.Content)
	require.Contains(t, out.String(), "Executing: rm -rf /tmp/*")
}

func TestTrustedToolRunsWithoutPrompt(t *testing.T) {
	mock := llmclient.NewMock(
		llmclient.MockTurn{Events: []llmclient.MockEvent{
			{ToolUseID: "tu1", ToolUseName: "fs_read", ToolUseInput: `{"mode":"Line","path":"/f.txt"}`},
		}},
		llmclient.MockTurn{Events: []llmclient.MockEvent{{Text: "done"}}},
	)
	var out bytes.Buffer
	fsys := fsshim.NewMem()
	require.NoError(t, fsys.Write("/f.txt", []byte("contents"), 0o644))
	e := New(Options{
		Client:   mock,
		Registry: tools.NewBuiltinRegistry(fsys),
		Input:    strings.NewReader(""), // no confirmation available
		Output:   &out,
	})

	require.NoError(t, e.chatTurn(context.Background(), "read /f.txt"))
	require.Len(t, mock.Requests, 2)
	tr := mock.Requests[1].UserInput.ToolResults
	require.Len(t, tr, 1)
	require.False(t, tr[0].IsError)
	require.Equal(t, "contents", tr[0].Content)
}

func TestInvalidToolArgumentsReturnErrorResult(t *testing.T) {
	mock := llmclient.NewMock(
		llmclient.MockTurn{Events: []llmclient.MockEvent{
			{ToolUseID: "tu1", ToolUseName: "fs_read", ToolUseInput: `{"mode":"Bogus","path":"/x"}`},
		}},
		llmclient.MockTurn{Events: []llmclient.MockEvent{{Text: "corrected"}}},
	)
	e, _ := newTestEngine(t, mock, "")

	require.NoError(t, e.chatTurn(context.Background(), "read something"))
	tr := mock.Requests[1].UserInput.ToolResults
	require.Len(t, tr, 1)
	require.True(t, tr[0].IsError)
	require.Contains(t, tr[0].Content, "invalid arguments")
}

// After 200 alternations the payload history stays within the budget and
// starts with a plain user message.
func TestHistoryOverflowAcrossManyTurns(t *testing.T) {
	var turns []llmclient.MockTurn
	for i := 0; i < 200; i++ {
		turns = append(turns, llmclient.MockTurn{Events: []llmclient.MockEvent{{Text: "a"}}})
	}
	mock := llmclient.NewMock(turns...)
	e, _ := newTestEngine(t, mock, "")

	for i := 0; i < 200; i++ {
		require.NoError(t, e.chatTurn(context.Background(), "q"))
	}
	last := mock.Requests[len(mock.Requests)-1]
	require.LessOrEqual(t, len(last.History), 98)
	first := last.History[0]
	require.Equal(t, conversation.RoleUser, first.Role)
	require.False(t, first.HasToolResults())
}

func TestStreamErrorSurfacesHint(t *testing.T) {
	kind := llmclient.MockErrOverflow
	mock := llmclient.NewMock(llmclient.MockTurn{Err: &kind})
	e, _ := newTestEngine(t, mock, "")

	err := e.chatTurn(context.Background(), "huge message")
	require.ErrorIs(t, err, llmclient.ErrContextWindowOverflow)
	require.Contains(t, RecoveryHint(err), "/compact")
}

func TestCompactReplacesHistory(t *testing.T) {
	mock := llmclient.NewMock(
		llmclient.MockTurn{Events: []llmclient.MockEvent{{Text: "hello"}}},
		llmclient.MockTurn{Events: []llmclient.MockEvent{{Text: "summary of the chat"}}},
	)
	e, out := newTestEngine(t, mock, "")
	require.NoError(t, e.chatTurn(context.Background(), "hi"))

	require.NoError(t, e.compact(context.Background(), []string{"--summary"}))
	h := e.Conversation().History()
	require.Len(t, h, 2)
	require.Equal(t, compactedUserMessage, h[0].Content)
	require.Equal(t, conversation.RoleAssistant, h[1].Role)
	require.Equal(t, "summary of the chat", h[1].Content)
	require.Contains(t, out.String(), "summary of the chat")
}

func TestRunQuitsOnSlashQuit(t *testing.T) {
	mock := llmclient.NewMock()
	e, _ := newTestEngine(t, mock, "/quit\n")
	require.NoError(t, e.Run(context.Background(), ""))
}

func TestRunExitsCleanlyOnEOF(t *testing.T) {
	mock := llmclient.NewMock(llmclient.MockTurn{Events: []llmclient.MockEvent{{Text: "hi"}}})
	e, out := newTestEngine(t, mock, "say hi\n")
	require.NoError(t, e.Run(context.Background(), ""))
	require.Contains(t, out.String(), "hi")
}

func TestRunRejectsBareExit(t *testing.T) {
	mock := llmclient.NewMock()
	e, out := newTestEngine(t, mock, "exit\n/quit\n")
	require.NoError(t, e.Run(context.Background(), ""))
	require.Contains(t, out.String(), "did you mean /quit")
	require.Empty(t, mock.Requests)
}

func TestToolsTrustallAndReset(t *testing.T) {
	mock := llmclient.NewMock()
	e, _ := newTestEngine(t, mock, "")
	require.NoError(t, e.handleTools([]string{"trustall"}))
	require.False(t, e.perms.RequiresConfirmation("execute_bash"))
	require.NoError(t, e.handleTools([]string{"reset"}))
	require.True(t, e.perms.RequiresConfirmation("execute_bash"))
}

func TestTranslateOneShot(t *testing.T) {
	mock := llmclient.NewMock(llmclient.MockTurn{Events: []llmclient.MockEvent{{Text: "ls ~/Desktop\n"}}})
	cmd, err := Translate(context.Background(), mock, "list files on my desktop")
	require.NoError(t, err)
	require.Equal(t, "ls ~/Desktop", cmd)
}

func TestTranslateNoCompletion(t *testing.T) {
	mock := llmclient.NewMock(llmclient.MockTurn{})
	_, err := Translate(context.Background(), mock, "do nothing")
	require.ErrorIs(t, err, ErrNoCompletion)
}
