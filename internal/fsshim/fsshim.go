// Package fsshim is the filesystem capability the tool executor goes
// through, so tests can run against an in-memory map instead of the real
// disk. The context manager does not use it; it reads the disk directly.
package fsshim

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FS is the narrow filesystem surface the rest of the module depends on.
type FS interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte, perm fs.FileMode) error
	ReadDir(path string) ([]fs.DirEntry, error)
	Stat(path string) (fs.FileInfo, error)
	Exists(path string) bool
	Canonicalize(path string) (string, error)
}

// OS is the real-disk implementation.
type OS struct{}

// NewOS returns the real-disk filesystem.
func NewOS() OS { return OS{} }

func (OS) Read(path string) ([]byte, error) { return os.ReadFile(path) }

func (OS) Write(path string, data []byte, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

func (OS) ReadDir(path string) ([]fs.DirEntry, error) { return os.ReadDir(path) }

func (OS) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

func (OS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OS) Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The path may not exist yet (fs_write targets); the absolute
		// form is still canonical enough for display and exist checks.
		return abs, nil
	}
	return resolved, nil
}
