package fsshim

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// Mem is an in-memory FS for tests: a flat map of slash-separated paths
// to file contents, with directories implied by their children.
type Mem struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMem returns an empty in-memory filesystem.
func NewMem() *Mem {
	return &Mem{files: make(map[string][]byte)}
}

func (m *Mem) Read(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path.Clean(p)]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Mem) Write(p string, data []byte, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.files[path.Clean(p)] = cp
	return nil
}

func (m *Mem) ReadDir(p string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := path.Clean(p)
	if prefix != "/" {
		prefix += "/"
	}
	names := make(map[string]bool) // name -> isDir
	for f := range m.files {
		if !strings.HasPrefix(f, prefix) {
			continue
		}
		rest := strings.TrimPrefix(f, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			names[rest[:i]] = true
		} else {
			names[rest] = false
		}
	}
	if len(names) == 0 && !m.dirExistsLocked(path.Clean(p)) {
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: fs.ErrNotExist}
	}
	keys := make([]string, 0, len(names))
	for n := range names {
		keys = append(keys, n)
	}
	sort.Strings(keys)
	entries := make([]fs.DirEntry, 0, len(keys))
	for _, n := range keys {
		size := int64(0)
		if !names[n] {
			size = int64(len(m.files[prefix+n]))
		}
		entries = append(entries, memEntry{name: n, dir: names[n], size: size})
	}
	return entries, nil
}

func (m *Mem) Stat(p string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := path.Clean(p)
	if data, ok := m.files[cp]; ok {
		return memInfo{name: path.Base(cp), size: int64(len(data))}, nil
	}
	if m.dirExistsLocked(cp) {
		return memInfo{name: path.Base(cp), dir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

func (m *Mem) dirExistsLocked(p string) bool {
	prefix := p
	if prefix != "/" {
		prefix += "/"
	}
	for f := range m.files {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return p == "/" || p == "."
}

func (m *Mem) Exists(p string) bool {
	_, err := m.Stat(p)
	return err == nil
}

func (m *Mem) Canonicalize(p string) (string, error) {
	return path.Clean(p), nil
}

type memEntry struct {
	name string
	dir  bool
	size int64
}

func (e memEntry) Name() string      { return e.name }
func (e memEntry) IsDir() bool       { return e.dir }
func (e memEntry) Type() fs.FileMode { return memInfo{name: e.name, dir: e.dir}.Mode().Type() }
func (e memEntry) Info() (fs.FileInfo, error) {
	return memInfo{name: e.name, dir: e.dir, size: e.size}, nil
}

type memInfo struct {
	name string
	dir  bool
	size int64
}

func (i memInfo) Name() string { return i.name }
func (i memInfo) Size() int64  { return i.size }
func (i memInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return i.dir }
func (i memInfo) Sys() any           { return nil }
