package secretstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func readRaw(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, KeyToken, []byte("abc")))
	v, ok, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("abc"), v)

	require.NoError(t, s.Delete(ctx, KeyToken))
	_, ok, err = s.Get(ctx, KeyToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, KeyDeviceRegistration, []byte(`{"client_id":"abc"}`)))

	s2, err := NewFileStore(dir)
	require.NoError(t, err)
	v, ok, err := s2.Get(ctx, KeyDeviceRegistration)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"client_id":"abc"}`, string(v))

	keyPath := filepath.Join(dir, "secrets.key")
	require.FileExists(t, keyPath)
}

func TestFileStoreEncryptedOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyToken, []byte("super-secret-bearer-token")))

	raw, err := readRaw(filepath.Join(dir, "secrets.json.enc"))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "super-secret-bearer-token")
}
