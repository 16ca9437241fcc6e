package tools

import "sync"

// Permission is the per-tool confirmation mode.
type Permission string

const (
	// PermissionAsk requires a confirmation prompt before every run.
	PermissionAsk Permission = "ask"
	// PermissionTrusted runs without prompting for the rest of the session.
	PermissionTrusted Permission = "trusted"
	// PermissionUntrusted always prompts, even for tools that default to
	// trusted.
	PermissionUntrusted Permission = "untrusted"
)

// defaultPermissions: read-only tools run unprompted; anything that
// mutates the machine or leaves the process asks each time.
var defaultPermissions = map[string]Permission{
	"fs_read":      PermissionTrusted,
	"fs_write":     PermissionAsk,
	"execute_bash": PermissionAsk,
	"use_aws":      PermissionAsk,
	"knowledge":    PermissionAsk,
	"report_issue": PermissionTrusted,
}

// Permissions tracks the session's per-tool trust state, mutated by the
// /tools command family.
type Permissions struct {
	mu        sync.RWMutex
	overrides map[string]Permission
}

// NewPermissions returns the default permission state.
func NewPermissions() *Permissions {
	return &Permissions{overrides: make(map[string]Permission)}
}

// Get returns the effective permission for name.
func (p *Permissions) Get(name string) Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if perm, ok := p.overrides[name]; ok {
		return perm
	}
	if perm, ok := defaultPermissions[name]; ok {
		return perm
	}
	return PermissionAsk
}

// Trust marks name as trusted for the rest of the session.
func (p *Permissions) Trust(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[name] = PermissionTrusted
}

// Untrust forces a prompt for name even if it defaults to trusted.
func (p *Permissions) Untrust(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[name] = PermissionUntrusted
}

// TrustAll promotes every named tool to trusted for the session.
func (p *Permissions) TrustAll(names []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range names {
		p.overrides[n] = PermissionTrusted
	}
}

// Reset restores the default permission for every tool.
func (p *Permissions) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides = make(map[string]Permission)
}

// RequiresConfirmation reports whether running name needs a prompt.
func (p *Permissions) RequiresConfirmation(name string) bool {
	return p.Get(name) != PermissionTrusted
}
