// Package config loads and persists the shellmind settings file and
// resolves the per-user directory layout (settings, context profiles,
// input history, secrets).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the persisted configuration, one YAML file per user.
type Settings struct {
	Provider ProviderSettings `yaml:"provider"`
	Auth     AuthSettings     `yaml:"auth"`
	Chat     ChatSettings     `yaml:"chat"`
}

// ProviderSettings selects and tunes the model backend.
type ProviderSettings struct {
	// Name is "anthropic" or "openai".
	Name string `yaml:"name"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
}

// AuthSettings tunes the OIDC login flows.
type AuthSettings struct {
	Region   string `yaml:"region"`
	StartURL string `yaml:"start_url"`
	UsePKCE  bool   `yaml:"use_pkce"`
}

// ChatSettings tunes the REPL.
type ChatSettings struct {
	TerminalWidth int  `yaml:"terminal_width"`
	SaveHistory   bool `yaml:"save_history"`
}

// Default returns the settings used before the user writes any.
func Default() Settings {
	return Settings{
		Provider: ProviderSettings{
			Name:      "anthropic",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		Chat: ChatSettings{SaveHistory: true},
	}
}

// Dir is the per-user configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve config dir: %w", err)
	}
	return filepath.Join(base, "shellmind"), nil
}

// SettingsPath is the settings file location.
func SettingsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

// ProfilesDir holds the context profile files.
func ProfilesDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles"), nil
}

// HistoryPath is the input-history database location.
func HistoryPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Load reads the settings file, returning defaults when none exists.
func Load() (Settings, error) {
	path, err := SettingsPath()
	if err != nil {
		return Settings{}, err
	}
	return LoadFrom(path)
}

// LoadFrom reads settings from an explicit path.
func LoadFrom(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return Settings{}, fmt.Errorf("config: read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("config: parse settings: %w", err)
	}
	return s, nil
}

// Save writes settings to the default path, creating the directory.
func (s Settings) Save() error {
	path, err := SettingsPath()
	if err != nil {
		return err
	}
	return s.SaveTo(path)
}

// SaveTo writes settings to an explicit path.
func (s Settings) SaveTo(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Get reads one settings value by dotted key, e.g. "provider.model".
func (s Settings) Get(key string) (string, error) {
	flat, err := s.flatten()
	if err != nil {
		return "", err
	}
	v, ok := flat[key]
	if !ok {
		return "", fmt.Errorf("config: unknown setting %q", key)
	}
	return v, nil
}

// Set writes one settings value by dotted key and returns the updated
// settings.
func (s Settings) Set(key, value string) (Settings, error) {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return Settings{}, fmt.Errorf("config: encode settings: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return Settings{}, fmt.Errorf("config: reshape settings: %w", err)
	}

	parts := strings.Split(key, ".")
	node := tree
	for i, part := range parts {
		if i == len(parts)-1 {
			if _, ok := node[part]; !ok {
				return Settings{}, fmt.Errorf("config: unknown setting %q", key)
			}
			node[part] = coerce(value)
			break
		}
		next, ok := node[part].(map[string]any)
		if !ok {
			return Settings{}, fmt.Errorf("config: unknown setting %q", key)
		}
		node = next
	}

	reencoded, err := yaml.Marshal(tree)
	if err != nil {
		return Settings{}, fmt.Errorf("config: encode settings: %w", err)
	}
	var out Settings
	if err := yaml.Unmarshal(reencoded, &out); err != nil {
		return Settings{}, fmt.Errorf("config: apply setting %q: %w", key, err)
	}
	return out, nil
}

// Keys lists every settable dotted key.
func (s Settings) Keys() ([]string, error) {
	flat, err := s.flatten()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s Settings) flatten() (map[string]string, error) {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("config: encode settings: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("config: reshape settings: %w", err)
	}
	flat := make(map[string]string)
	flattenInto("", tree, flat)
	return flat, nil
}

func flattenInto(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flattenInto(key, child, out)
			continue
		}
		out[key] = fmt.Sprintf("%v", v)
	}
}

// coerce maps CLI-typed strings onto YAML scalar types.
func coerce(v string) any {
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err == nil && fmt.Sprintf("%d", n) == v {
		return n
	}
	return v
}
