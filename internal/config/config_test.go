package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	s, err := LoadFrom(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)
	require.Equal(t, "anthropic", s.Provider.Name)
	require.Equal(t, "ANTHROPIC_API_KEY", s.Provider.APIKeyEnv)
	require.True(t, s.Chat.SaveHistory)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := Default()
	s.Provider.Model = "claude-sonnet-4-20250514"
	s.Auth.Region = "eu-west-1"
	require.NoError(t, s.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, s, loaded)
}

func TestGetAndSetByDottedKey(t *testing.T) {
	s := Default()
	got, err := s.Get("provider.name")
	require.NoError(t, err)
	require.Equal(t, "anthropic", got)

	s2, err := s.Set("provider.model", "gpt-4o")
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", s2.Provider.Model)

	s3, err := s2.Set("chat.terminal_width", "120")
	require.NoError(t, err)
	require.Equal(t, 120, s3.Chat.TerminalWidth)

	s4, err := s3.Set("chat.save_history", "false")
	require.NoError(t, err)
	require.False(t, s4.Chat.SaveHistory)
}

func TestSetUnknownKeyFails(t *testing.T) {
	s := Default()
	_, err := s.Set("bogus.key", "x")
	require.Error(t, err)
	_, err = s.Get("bogus.key")
	require.Error(t, err)
}

func TestKeysCoverAllSettings(t *testing.T) {
	keys, err := Default().Keys()
	require.NoError(t, err)
	require.Contains(t, keys, "provider.name")
	require.Contains(t, keys, "auth.region")
	require.Contains(t, keys, "chat.terminal_width")
}
