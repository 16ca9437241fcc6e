package ptymux

import (
	"fmt"
	"os"
	"path/filepath"
)

// Socket layout under the runtime directory. Parent directories are
// created 0700; total path length must stay under the OS limit for
// UNIX socket addresses.
const (
	runSubdir         = "cwrun"
	sessionSubdir     = "t"
	remoteSocketName  = "remote.sock"
	maxSocketPathLen  = 100
	parentSocketEnv   = "Q_PARENT"
	sessionIDChildEnv = "QTERM_SESSION_ID"
)

// RuntimeDir resolves the base runtime directory: $XDG_RUNTIME_DIR when
// set, else a per-user directory under the temp root.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("shellmind-%d", os.Getuid()))
}

// RemoteSocketPath is the multiplexer's agent-facing UNIX socket. When
// the session is forwarded over SSH, Q_PARENT overrides it with the
// forwarded path.
func RemoteSocketPath() (string, error) {
	if p := os.Getenv(parentSocketEnv); p != "" {
		return checkSocketPath(p)
	}
	return checkSocketPath(filepath.Join(RuntimeDir(), runSubdir, remoteSocketName))
}

// SessionSocketPath is the per-session agent socket.
func SessionSocketPath(sessionID string) (string, error) {
	return checkSocketPath(filepath.Join(RuntimeDir(), runSubdir, sessionSubdir, sessionID+".sock"))
}

// ChildSessionID reads the session id handed to child shells.
func ChildSessionID() string { return os.Getenv(sessionIDChildEnv) }

func checkSocketPath(p string) (string, error) {
	if len(p) > maxSocketPathLen {
		return "", fmt.Errorf("ptymux: socket path %q exceeds %d bytes", p, maxSocketPathLen)
	}
	return p, nil
}

// EnsureSocketDir creates the socket's parent directories mode 0700 and
// removes a stale socket file at path.
func EnsureSocketDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("ptymux: create socket dir: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ptymux: remove stale socket: %w", err)
	}
	return nil
}
