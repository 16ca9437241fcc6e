package contextmgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(dir, DefaultProfileName)
	require.NoError(t, err)
	return m, dir
}

func TestContextFilesExpandsGlobsDeterministically(t *testing.T) {
	m, _ := newTestManager(t)
	work := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(work, "b.md"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(work, "a.md"), []byte("a"), 0o644))
	require.NoError(t, m.AddPaths(true, filepath.Join(work, "*.md")))

	files, err := m.ContextFiles(false)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "a.md", filepath.Base(files[0].Path))
	require.Equal(t, "b.md", filepath.Base(files[1].Path))
	require.Equal(t, "a", files[0].Content)
}

func TestContextFilesTruncatesOversizedFiles(t *testing.T) {
	m, _ := newTestManager(t)
	work := t.TempDir()
	big := make([]byte, MaxContextFileBytes+100)
	require.NoError(t, os.WriteFile(filepath.Join(work, "big.txt"), big, 0o644))
	require.NoError(t, m.AddPaths(false, filepath.Join(work, "big.txt")))

	files, err := m.ContextFiles(false)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Len(t, files[0].Content, MaxContextFileBytes)
}

func TestContextFilesMissingLiteralPath(t *testing.T) {
	m, _ := newTestManager(t)
	missing := filepath.Join(t.TempDir(), "gone.txt")

	// Adding a missing literal path is rejected outright.
	require.Error(t, m.AddPaths(false, missing))

	// A path deleted after being added is tolerated on a forced resolve
	// and reported on a validating one.
	work := t.TempDir()
	p := filepath.Join(work, "doomed.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	require.NoError(t, m.AddPaths(false, p))
	require.NoError(t, os.Remove(p))

	_, err := m.ContextFiles(true)
	require.NoError(t, err)
	_, err = m.ContextFiles(false)
	require.Error(t, err)
}

func TestContextFilesIncludesDirectoryNonRecursively(t *testing.T) {
	m, _ := newTestManager(t)
	work := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(work, "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(work, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(work, "sub", "nested.txt"), []byte("nested"), 0o644))
	require.NoError(t, m.AddPaths(false, work))

	files, err := m.ContextFiles(false)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "top.txt", filepath.Base(files[0].Path))
}

func TestSaveAndLoadProfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := Profile{Name: "work", Paths: []string{"*.go", "README.md"}}
	path := filepath.Join(dir, "work.yaml")
	require.NoError(t, SaveProfile(p, path))

	loaded, err := LoadProfile("work", path)
	require.NoError(t, err)
	require.Equal(t, p.Paths, loaded.Paths)
}

func TestProfileNameValidation(t *testing.T) {
	require.NoError(t, ValidateProfileName("default"))
	require.NoError(t, ValidateProfileName("Work-2"))
	require.NoError(t, ValidateProfileName("a_b"))
	require.Error(t, ValidateProfileName(""))
	require.Error(t, ValidateProfileName("-leading"))
	require.Error(t, ValidateProfileName("_leading"))
	require.Error(t, ValidateProfileName("has space"))
	require.Error(t, ValidateProfileName("slash/y"))
}

func TestDefaultProfileIsProtected(t *testing.T) {
	m, _ := newTestManager(t)
	require.ErrorIs(t, m.DeleteProfile(DefaultProfileName), ErrReservedProfile)
	require.ErrorIs(t, m.RenameProfile(DefaultProfileName, "other"), ErrReservedProfile)
	require.ErrorIs(t, m.RenameProfile("other", DefaultProfileName), ErrReservedProfile)
}

func TestActiveProfileIsProtected(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.CreateProfile("work"))
	require.NoError(t, m.SetActive("work"))
	require.ErrorIs(t, m.DeleteProfile("work"), ErrActiveProfile)
	require.ErrorIs(t, m.RenameProfile("work", "play"), ErrActiveProfile)
}

func TestProfileLifecycle(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.CreateProfile("work"))
	require.ErrorIs(t, m.CreateProfile("work"), ErrProfileExists)

	names, err := m.ListProfiles()
	require.NoError(t, err)
	require.Contains(t, names, DefaultProfileName)
	require.Contains(t, names, "work")

	require.NoError(t, m.RenameProfile("work", "play"))
	require.ErrorIs(t, m.RenameProfile("work", "other"), ErrProfileNotFound)
	require.NoError(t, m.DeleteProfile("play"))
	require.ErrorIs(t, m.DeleteProfile("play"), ErrProfileNotFound)
}
