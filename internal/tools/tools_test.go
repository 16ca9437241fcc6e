package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shellmind/cli/internal/fsshim"
)

func TestPermissionDefaults(t *testing.T) {
	p := NewPermissions()
	require.False(t, p.RequiresConfirmation("fs_read"))
	require.True(t, p.RequiresConfirmation("fs_write"))
	require.True(t, p.RequiresConfirmation("execute_bash"))
	require.True(t, p.RequiresConfirmation("some_unknown_tool"))
}

func TestPermissionTrustAllAndReset(t *testing.T) {
	p := NewPermissions()
	names := []string{"fs_read", "fs_write", "execute_bash", "use_aws", "knowledge", "report_issue"}
	p.TrustAll(names)
	for _, n := range names {
		require.False(t, p.RequiresConfirmation(n), "tool %s", n)
	}
	p.Reset()
	require.True(t, p.RequiresConfirmation("execute_bash"))
	require.False(t, p.RequiresConfirmation("fs_read"))
}

func TestPermissionUntrustOverridesDefault(t *testing.T) {
	p := NewPermissions()
	p.Untrust("fs_read")
	require.True(t, p.RequiresConfirmation("fs_read"))
	p.Trust("fs_read")
	require.False(t, p.RequiresConfirmation("fs_read"))
}

// Validation is driven by each tool's declared schema, so the enforced
// constraints cannot drift from the advertised ones.
func TestValidateEnforcesDeclaredSchemas(t *testing.T) {
	r := NewBuiltinRegistry(fsshim.NewMem())
	cases := []struct {
		tool  string
		input string
	}{
		{"fs_read", `{"mode":"Line","path":"/x","start_line":"two"}`},
		{"fs_read", `{"mode":"Line","path":""}`},
		{"fs_read", `{"path":"/x"}`},
		{"execute_bash", `{"command":42}`},
		{"use_aws", `{"service_name":"S3!","operation_name":"list-buckets","region":"us-east-1"}`},
		{"use_aws", `{"service_name":"s3","operation_name":"list-buckets"}`},
		{"fs_write", `{"path":"/x"}`},
		{"report_issue", `{"title":""}`},
		{"knowledge", `{"command":"explode"}`},
	}
	for _, tc := range cases {
		tool, ok := r.Get(tc.tool)
		require.True(t, ok, tc.tool)
		require.Error(t, tool.Validate(json.RawMessage(tc.input)), "%s %s", tc.tool, tc.input)
	}

	valid := map[string]string{
		"fs_read":      `{"mode":"Search","path":"/x","pattern":"y"}`,
		"execute_bash": `{"command":"ls -la"}`,
		"use_aws":      `{"service_name":"s3","operation_name":"list-buckets","region":"us-east-1"}`,
		"fs_write":     `{"path":"/x","content":"data"}`,
		"report_issue": `{"title":"something broke"}`,
		"knowledge":    `{"command":"show"}`,
	}
	for name, input := range valid {
		tool, ok := r.Get(name)
		require.True(t, ok, name)
		require.NoError(t, tool.Validate(json.RawMessage(input)), "%s %s", name, input)
	}
}

func TestRegistryExecuteValidatesBeforeInvoking(t *testing.T) {
	r := NewBuiltinRegistry(fsshim.NewMem())
	out, err := r.Execute(context.Background(), "fs_read", json.RawMessage(`{"mode":"Bogus","path":"/x"}`))
	require.NoError(t, err)
	require.True(t, out.IsError)
	require.Contains(t, out.Text, "invalid arguments")
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewBuiltinRegistry(fsshim.NewMem())
	out, err := r.Execute(context.Background(), "no_such_tool", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.True(t, out.IsError)
	require.Contains(t, out.Text, "tool not found")
}

func TestRegistrySpecsCoverBuiltins(t *testing.T) {
	r := NewBuiltinRegistry(fsshim.NewMem())
	specs := r.Specs()
	names := make(map[string]bool, len(specs))
	for _, s := range specs {
		require.NotEmpty(t, s.Description)
		require.NotEmpty(t, s.InputSchema)
		names[s.Name] = true
	}
	for _, want := range []string{"fs_read", "fs_write", "execute_bash", "use_aws", "knowledge", "report_issue"} {
		require.True(t, names[want], "missing spec for %s", want)
	}
}

func TestFsWriteExistCheckRefusesClobber(t *testing.T) {
	fsys := fsshim.NewMem()
	r := NewBuiltinRegistry(fsys)

	out, err := r.Execute(context.Background(), "fs_write", json.RawMessage(`{"path":"/a.txt","content":"one"}`))
	require.NoError(t, err)
	require.False(t, out.IsError)

	out, err = r.Execute(context.Background(), "fs_write", json.RawMessage(`{"path":"/a.txt","content":"two","exist_check":true}`))
	require.NoError(t, err)
	require.True(t, out.IsError)

	data, err := fsys.Read("/a.txt")
	require.NoError(t, err)
	require.Equal(t, "one", string(data))
}
