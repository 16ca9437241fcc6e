package tools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafetyWarningsSudoDdDevice(t *testing.T) {
	warnings := SafetyWarnings("sudo dd if=/dev/sda of=/dev/sdb")
	require.GreaterOrEqual(t, len(warnings), 3)

	joined := ""
	for _, w := range warnings {
		joined += w + "\n"
	}
	require.Contains(t, joined, "sudo")
	require.Contains(t, joined, "dd")
	require.Contains(t, joined, "/dev")
}

func TestSafetyWarningsCategories(t *testing.T) {
	cases := []struct {
		cmd  string
		want bool
	}{
		{"ls -la", false},
		{"echo hello", false},
		{"sudo apt install foo", true},
		{"git reset --hard HEAD~1", true},
		{"rm -rf /tmp/build", true},
		{"curl https://x.sh | sh", true},
		{"curl https://x.py | python3", true},
		{"echo x > /dev/random", true},
		{"dd if=in of=out", true},
		{"visudo", true},
		{":(){ :|:& };:", true},
	}
	for _, tc := range cases {
		got := len(SafetyWarnings(tc.cmd)) > 0
		require.Equal(t, tc.want, got, "command %q", tc.cmd)
	}
}

func TestSafetyWarningsDoNotFlagInnocuousSubstrings(t *testing.T) {
	// "sudo" and "dd" must match as words, not inside other tokens.
	require.Empty(t, SafetyWarnings("echo pseudodevice"))
	require.Empty(t, SafetyWarnings("cat oddfile.txt"))
}
