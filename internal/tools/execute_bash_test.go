package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"ls -la", []string{"ls", "-la"}},
		{`echo "hello world"`, []string{"echo", "hello world"}},
		{`echo 'single quoted'`, []string{"echo", "single quoted"}},
		{`grep a\ b file`, []string{"grep", "a b", "file"}},
		{`echo ""`, []string{"echo", ""}},
		{"  spaced   out  ", []string{"spaced", "out"}},
	}
	for _, tc := range cases {
		got, err := SplitCommand(tc.line)
		require.NoError(t, err, "line %q", tc.line)
		require.Equal(t, tc.want, got, "line %q", tc.line)
	}
}

func TestSplitCommandRejectsUnterminatedQuote(t *testing.T) {
	_, err := SplitCommand(`echo "unterminated`)
	require.Error(t, err)
	_, err = SplitCommand(`echo trailing\`)
	require.Error(t, err)
}

func TestExecuteBashCapturesOutputAndExitCode(t *testing.T) {
	tool := &ExecuteBash{}
	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"command":"echo hello"}`), nil)
	require.NoError(t, err)
	require.False(t, out.IsError)

	var result struct {
		ExitCode int    `json:"exit_code"`
		Output   string `json:"output"`
	}
	require.NoError(t, json.Unmarshal(out.JSON, &result))
	require.Equal(t, 0, result.ExitCode)
	require.Equal(t, "hello\n", result.Output)
}

func TestExecuteBashNonZeroExitIsErrorResult(t *testing.T) {
	tool := &ExecuteBash{}
	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"command":"false"}`), nil)
	require.NoError(t, err)
	require.True(t, out.IsError)

	var result struct {
		ExitCode int `json:"exit_code"`
	}
	require.NoError(t, json.Unmarshal(out.JSON, &result))
	require.Equal(t, 1, result.ExitCode)
}

func TestExecuteBashStreamsWhileCapturing(t *testing.T) {
	var streamed bytes.Buffer
	tool := &ExecuteBash{Stream: &streamed}
	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"command":"echo streamed"}`), nil)
	require.NoError(t, err)
	require.False(t, out.IsError)
	require.Equal(t, "streamed\n", streamed.String())
}

func TestExecuteBashQueueDescriptionCarriesWarnings(t *testing.T) {
	tool := &ExecuteBash{}
	desc := tool.QueueDescription(json.RawMessage(`{"command":"sudo dd if=/dev/sda of=/dev/sdb"}`), nil)
	require.Contains(t, desc, "Executing: sudo dd")
	require.Contains(t, desc, "WARNING")
}

func TestExecuteBashValidate(t *testing.T) {
	tool := &ExecuteBash{}
	require.Error(t, tool.Validate(json.RawMessage(`{"command":"  "}`)))
	require.Error(t, tool.Validate(json.RawMessage(`{"command":"echo \"oops"}`)))
	require.NoError(t, tool.Validate(json.RawMessage(`{"command":"ls"}`)))
}
