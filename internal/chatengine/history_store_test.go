package chatengine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := OpenHistoryStore(path)
	require.NoError(t, err)
	defer h.Close()

	ctx := context.Background()
	require.NoError(t, h.Append(ctx, "first"))
	require.NoError(t, h.Append(ctx, "second"))
	require.NoError(t, h.Append(ctx, "third"))

	recent, err := h.Recent(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"third", "second"}, recent)
}

func TestHistoryStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := OpenHistoryStore(path)
	require.NoError(t, err)
	require.NoError(t, h.Append(context.Background(), "persisted"))
	require.NoError(t, h.Close())

	h2, err := OpenHistoryStore(path)
	require.NoError(t, err)
	defer h2.Close()
	recent, err := h2.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"persisted"}, recent)
}
