package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	want := []string{"chat", "translate", "login", "logout", "whoami", "profile", "settings", "integrations", "doctor", "issue", "internal"}
	have := make(map[string]bool)
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		require.True(t, have[name], "missing subcommand %s", name)
	}
}

func TestTranslateRequiresInput(t *testing.T) {
	root := newRootCmd()
	root.SetIn(strings.NewReader(""))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"translate"})
	err := root.Execute()
	require.ErrorIs(t, err, errUsage)
}

// Scenario: piping a request to translate prints a single command line
// and exits 0, driven by the scripted mock fixture.
func TestTranslateOneShotWithMockFixture(t *testing.T) {
	fixture := `[{"events":[{"text":"ls ~/Desktop\n"}]}]`
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	t.Setenv("Q_MOCK_CHAT_RESPONSE", path)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetIn(strings.NewReader("list files on my desktop"))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"translate"})

	require.NoError(t, root.Execute())
	require.Equal(t, "ls ~/Desktop\n", out.String())
}

func TestIntegrationsRejectsUnknownTarget(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"integrations", "install", "powershell"})
	err := root.Execute()
	require.ErrorIs(t, err, errUsage)
}
