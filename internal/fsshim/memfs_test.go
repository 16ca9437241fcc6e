package fsshim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemReadWriteRoundTrip(t *testing.T) {
	m := NewMem()
	require.False(t, m.Exists("/a/b.txt"))
	require.NoError(t, m.Write("/a/b.txt", []byte("hello"), 0o644))
	require.True(t, m.Exists("/a/b.txt"))

	data, err := m.Read("/a/b.txt")
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	_, err = m.Read("/missing")
	require.Error(t, err)
}

func TestMemReadDirListsImmediateChildren(t *testing.T) {
	m := NewMem()
	require.NoError(t, m.Write("/dir/a.txt", []byte("a"), 0o644))
	require.NoError(t, m.Write("/dir/sub/b.txt", []byte("b"), 0o644))

	entries, err := m.ReadDir("/dir")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a.txt", entries[0].Name())
	require.False(t, entries[0].IsDir())
	require.Equal(t, "sub", entries[1].Name())
	require.True(t, entries[1].IsDir())

	_, err = m.ReadDir("/nowhere")
	require.Error(t, err)
}

func TestMemStatDistinguishesFilesAndDirs(t *testing.T) {
	m := NewMem()
	require.NoError(t, m.Write("/dir/f", []byte("xy"), 0o644))

	info, err := m.Stat("/dir/f")
	require.NoError(t, err)
	require.False(t, info.IsDir())
	require.EqualValues(t, 2, info.Size())

	info, err = m.Stat("/dir")
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestMemCanonicalizeCleansPath(t *testing.T) {
	m := NewMem()
	got, err := m.Canonicalize("/a/./b/../c")
	require.NoError(t, err)
	require.Equal(t, "/a/c", got)
}
