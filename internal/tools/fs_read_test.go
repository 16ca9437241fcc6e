package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shellmind/cli/internal/fsshim"
)

func fsReadInvoke(t *testing.T, fsys fsshim.FS, input string) *Output {
	t.Helper()
	tool := &FsRead{}
	require.NoError(t, tool.Validate(json.RawMessage(input)))
	out, err := tool.Invoke(context.Background(), json.RawMessage(input), fsys)
	require.NoError(t, err)
	return out
}

func TestFsReadLineRange(t *testing.T) {
	fsys := fsshim.NewMem()
	require.NoError(t, fsys.Write("/f.txt", []byte("one\ntwo\nthree\nfour\nfive"), 0o644))

	out := fsReadInvoke(t, fsys, `{"mode":"Line","path":"/f.txt","start_line":2,"end_line":4}`)
	require.False(t, out.IsError)
	require.Equal(t, "two\nthree\nfour", out.Text)
}

func TestFsReadNegativeLineNumbersCountFromEnd(t *testing.T) {
	fsys := fsshim.NewMem()
	require.NoError(t, fsys.Write("/f.txt", []byte("one\ntwo\nthree\nfour\nfive"), 0o644))

	out := fsReadInvoke(t, fsys, `{"mode":"Line","path":"/f.txt","start_line":-2,"end_line":-1}`)
	require.False(t, out.IsError)
	require.Equal(t, "four\nfive", out.Text)
}

func TestFsReadWholeFileByDefault(t *testing.T) {
	fsys := fsshim.NewMem()
	require.NoError(t, fsys.Write("/f.txt", []byte("a\nb"), 0o644))

	out := fsReadInvoke(t, fsys, `{"mode":"Line","path":"/f.txt"}`)
	require.Equal(t, "a\nb", out.Text)
}

func TestFsReadMissingFileIsErrorResult(t *testing.T) {
	fsys := fsshim.NewMem()
	out := fsReadInvoke(t, fsys, `{"mode":"Line","path":"/missing.txt"}`)
	require.True(t, out.IsError)
}

func TestFsReadDirectoryListing(t *testing.T) {
	fsys := fsshim.NewMem()
	require.NoError(t, fsys.Write("/dir/a.txt", []byte("a"), 0o644))
	require.NoError(t, fsys.Write("/dir/sub/b.txt", []byte("b"), 0o644))

	shallow := fsReadInvoke(t, fsys, `{"mode":"Directory","path":"/dir"}`)
	require.Contains(t, shallow.Text, "a.txt")
	require.NotContains(t, shallow.Text, "b.txt")

	deep := fsReadInvoke(t, fsys, `{"mode":"Directory","path":"/dir","depth":2}`)
	require.Contains(t, deep.Text, "b.txt")
}

func TestFsReadSearchWithContext(t *testing.T) {
	fsys := fsshim.NewMem()
	require.NoError(t, fsys.Write("/f.txt", []byte("alpha\nbeta\nNEEDLE here\ngamma\ndelta"), 0o644))

	out := fsReadInvoke(t, fsys, `{"mode":"Search","path":"/f.txt","pattern":"needle","context_lines":1}`)
	require.False(t, out.IsError)
	require.Contains(t, out.Text, "NEEDLE here")
	require.Contains(t, out.Text, "beta")
	require.Contains(t, out.Text, "gamma")
	require.NotContains(t, out.Text, "alpha")
}

func TestFsReadValidateRejectsBadInput(t *testing.T) {
	tool := &FsRead{}
	require.Error(t, tool.Validate(json.RawMessage(`{"mode":"Line"}`)))
	require.Error(t, tool.Validate(json.RawMessage(`{"mode":"Bogus","path":"/x"}`)))
	require.Error(t, tool.Validate(json.RawMessage(`{"mode":"Search","path":"/x"}`)))
}
