// Package contextmgr resolves context-file glob patterns into concrete
// files to inject into a chat request. Patterns come from two lists: a
// global config applied to every profile, and the active profile's own
// list, managed through the /context and /profile commands.
package contextmgr

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shellmind/cli/internal/conversation"
)

// DefaultProfileName is the reserved profile that always exists and can
// never be renamed or deleted.
const DefaultProfileName = "default"

// MaxContextFileBytes bounds the size of any single injected file so a
// stray huge log doesn't blow the request budget.
const MaxContextFileBytes = 256 * 1024

var (
	// ErrReservedProfile guards the default profile against rename/delete.
	ErrReservedProfile = errors.New("contextmgr: the default profile cannot be renamed or deleted")
	// ErrActiveProfile guards the active profile against rename/delete.
	ErrActiveProfile = errors.New("contextmgr: the active profile cannot be renamed or deleted")
	// ErrProfileExists is returned when creating over an existing profile.
	ErrProfileExists = errors.New("contextmgr: profile already exists")
	// ErrProfileNotFound is returned for operations on unknown profiles.
	ErrProfileNotFound = errors.New("contextmgr: profile not found")
)

var profileNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateProfileName reports whether name is a legal profile name.
func ValidateProfileName(name string) error {
	if !profileNameRe.MatchString(name) {
		return fmt.Errorf("contextmgr: invalid profile name %q: must match %s", name, profileNameRe.String())
	}
	return nil
}

// Profile is a named set of path-or-glob entries to inject as context,
// persisted as YAML under the profile directory.
type Profile struct {
	Name  string   `yaml:"-"`
	Paths []string `yaml:"paths"`
}

// LoadProfile reads a profile YAML file from path.
func LoadProfile(name, path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("contextmgr: read profile %s: %w", name, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("contextmgr: parse profile %s: %w", name, err)
	}
	p.Name = name
	return p, nil
}

// SaveProfile writes p to path as YAML.
func SaveProfile(p Profile, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("contextmgr: encode profile %s: %w", p.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("contextmgr: create profile dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// isGlob reports whether entry must be expanded rather than read directly.
func isGlob(entry string) bool {
	return strings.ContainsAny(entry, "*?[")
}

// resolveEntries expands a list of path-or-glob entries into concrete file
// paths. Glob entries that match nothing contribute nothing. Literal
// entries that do not exist are skipped when force is true and reported as
// an error otherwise, so /context add can reject typos while a chat turn
// tolerates files deleted since they were added. Directories are included
// non-recursively.
func resolveEntries(entries []string, force bool) ([]string, error) {
	seen := make(map[string]struct{})
	var matches []string
	add := func(m string) {
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		matches = append(matches, m)
	}

	for _, entry := range entries {
		if isGlob(entry) {
			found, err := filepath.Glob(entry)
			if err != nil {
				return nil, fmt.Errorf("contextmgr: invalid glob %q: %w", entry, err)
			}
			for _, m := range found {
				add(m)
			}
			continue
		}

		info, err := os.Stat(entry)
		if err != nil {
			if force {
				continue
			}
			return nil, fmt.Errorf("contextmgr: context path %q: %w", entry, err)
		}
		if info.IsDir() {
			children, err := os.ReadDir(entry)
			if err != nil {
				if force {
					continue
				}
				return nil, fmt.Errorf("contextmgr: read dir %q: %w", entry, err)
			}
			for _, child := range children {
				if !child.IsDir() {
					add(filepath.Join(entry, child.Name()))
				}
			}
			continue
		}
		add(entry)
	}

	sort.Strings(matches)
	return matches, nil
}

// readFiles loads each path into a ContextFile, truncating oversized
// content and skipping anything unreadable.
func readFiles(paths []string) []conversation.ContextFile {
	files := make([]conversation.ContextFile, 0, len(paths))
	for _, m := range paths {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		if len(data) > MaxContextFileBytes {
			data = data[:MaxContextFileBytes]
		}
		files = append(files, conversation.ContextFile{Path: m, Content: string(data)})
	}
	return files
}
