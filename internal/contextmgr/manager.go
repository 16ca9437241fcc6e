package contextmgr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/shellmind/cli/internal/conversation"
)

// globalConfigName is the file holding the path list applied to every
// profile, resolved before the active profile's own list.
const globalConfigName = "global"

// Manager owns the global config and the active profile, resolves their
// combined path lists into context files, and optionally watches the
// profile directory for live edits made outside the chat session.
type Manager struct {
	mu      sync.RWMutex
	dir     string
	global  Profile
	active  Profile
	watcher *fsnotify.Watcher
}

// NewManager loads the global config and the named profile from dir,
// creating empty ones where no file exists yet.
func NewManager(dir, name string) (*Manager, error) {
	if err := ValidateProfileName(name); err != nil {
		return nil, err
	}
	m := &Manager{dir: dir}
	m.global = m.loadOrEmpty(globalConfigName)
	m.active = m.loadOrEmpty(name)
	return m, nil
}

func (m *Manager) loadOrEmpty(name string) Profile {
	p, err := LoadProfile(name, m.profilePath(name))
	if err != nil {
		return Profile{Name: name}
	}
	return p
}

func (m *Manager) profilePath(name string) string {
	return filepath.Join(m.dir, name+".yaml")
}

// Active returns the currently active profile.
func (m *Manager) Active() Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Global returns the global context config.
func (m *Manager) Global() Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.global
}

// ContextFiles resolves the global entries followed by the active
// profile's entries into concrete files. With force set, missing literal
// paths are silently skipped; otherwise they are reported so /context add
// can validate its argument.
func (m *Manager) ContextFiles(force bool) ([]conversation.ContextFile, error) {
	m.mu.RLock()
	entries := append(append([]string(nil), m.global.Paths...), m.active.Paths...)
	m.mu.RUnlock()

	paths, err := resolveEntries(entries, force)
	if err != nil {
		return nil, err
	}
	return readFiles(paths), nil
}

// AddPaths validates then appends entries to the active (or global) list
// and persists it. Literal paths must exist; globs are accepted as-is.
func (m *Manager) AddPaths(global bool, entries ...string) error {
	if _, err := resolveEntries(entries, false); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	target := &m.active
	if global {
		target = &m.global
	}
	target.Paths = append(target.Paths, entries...)
	return SaveProfile(*target, m.profilePath(target.Name))
}

// RemovePaths removes entries from the active (or global) list.
func (m *Manager) RemovePaths(global bool, entries ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := &m.active
	if global {
		target = &m.global
	}
	drop := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		drop[e] = struct{}{}
	}
	kept := target.Paths[:0]
	for _, p := range target.Paths {
		if _, ok := drop[p]; !ok {
			kept = append(kept, p)
		}
	}
	target.Paths = kept
	return SaveProfile(*target, m.profilePath(target.Name))
}

// ClearPaths empties the active (or global) list.
func (m *Manager) ClearPaths(global bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := &m.active
	if global {
		target = &m.global
	}
	target.Paths = nil
	return SaveProfile(*target, m.profilePath(target.Name))
}

// ListProfiles returns the names of all stored profiles, always including
// the default profile even before its file exists.
func (m *Manager) ListProfiles() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("contextmgr: list profiles: %w", err)
	}
	names := map[string]struct{}{DefaultProfileName: {}}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".yaml")
		if name == e.Name() || name == globalConfigName {
			continue
		}
		if ValidateProfileName(name) == nil {
			names[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	return out, nil
}

// CreateProfile creates a new, empty profile file.
func (m *Manager) CreateProfile(name string) error {
	if err := ValidateProfileName(name); err != nil {
		return err
	}
	if name == globalConfigName {
		return fmt.Errorf("contextmgr: %q is reserved", name)
	}
	if _, err := os.Stat(m.profilePath(name)); err == nil {
		return ErrProfileExists
	}
	return SaveProfile(Profile{Name: name}, m.profilePath(name))
}

// DeleteProfile removes a profile file. The default profile and the
// active profile are protected.
func (m *Manager) DeleteProfile(name string) error {
	if name == DefaultProfileName {
		return ErrReservedProfile
	}
	if name == m.Active().Name {
		return ErrActiveProfile
	}
	if err := os.Remove(m.profilePath(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("contextmgr: delete profile %s: %w", name, err)
	}
	return nil
}

// RenameProfile renames a stored profile. Neither side may be the default
// profile, and the active profile cannot be renamed out from under the
// session.
func (m *Manager) RenameProfile(from, to string) error {
	if from == DefaultProfileName || to == DefaultProfileName {
		return ErrReservedProfile
	}
	if from == m.Active().Name {
		return ErrActiveProfile
	}
	if err := ValidateProfileName(to); err != nil {
		return err
	}
	if _, err := os.Stat(m.profilePath(from)); err != nil {
		return ErrProfileNotFound
	}
	if _, err := os.Stat(m.profilePath(to)); err == nil {
		return ErrProfileExists
	}
	return os.Rename(m.profilePath(from), m.profilePath(to))
}

// SetActive switches the active profile, loading (or creating) it.
func (m *Manager) SetActive(name string) error {
	if err := ValidateProfileName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = m.loadOrEmpty(name)
	return nil
}

// Watch starts watching the profile directory, invoking onChange with the
// freshly loaded active profile whenever its file is rewritten.
func (m *Manager) Watch(onChange func(Profile)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("contextmgr: create watcher: %w", err)
	}
	if err := w.Add(m.dir); err != nil {
		w.Close()
		return fmt.Errorf("contextmgr: watch dir: %w", err)
	}
	m.mu.Lock()
	m.watcher = w
	m.mu.Unlock()

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				name := m.Active().Name
				if ev.Name != m.profilePath(name) {
					continue
				}
				p, err := LoadProfile(name, ev.Name)
				if err != nil {
					continue
				}
				m.mu.Lock()
				m.active = p
				m.mu.Unlock()
				if onChange != nil {
					onChange(p)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if running.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}
