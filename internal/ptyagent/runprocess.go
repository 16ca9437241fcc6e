package ptyagent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shellmind/cli/internal/ptymux/wire"
)

// defaultRunProcessTimeout applies when the host sets none.
const defaultRunProcessTimeout = 60 * time.Second

// scrubbedEnvVars are cleared so child output stays machine-parseable.
var scrubbedEnvVars = []string{"LS_COLORS", "CLICOLOR", "CLICOLOR_FORCE", "COLORTERM"}

// forcedEnvVars are set on every RunProcess child.
var forcedEnvVars = map[string]string{
	"PROCESS_LAUNCHED_BY_Q": "1",
	"TERM":                  "xterm-256color",
	"NO_COLOR":              "1",
	"HISTFILE":              "",
	"HISTCONTROL":           "ignoreboth",
}

// runProcess executes one host-requested process: the executable is
// resolved through PATH when relative, the child gets its own session
// so outer-shell signals never reach it, the environment is scrubbed,
// and the timeout kills the child outright.
func (a *Agent) runProcess(ctx context.Context, req *wire.RunProcess) *wire.RunProcessResponse {
	executable, err := resolveExecutable(req.Executable)
	if err != nil {
		return &wire.RunProcessResponse{ExitCode: -1, Error: err.Error()}
	}

	timeout := defaultRunProcessTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, executable, req.Arguments...)
	cmd.Dir = req.WorkingDirectory
	cmd.Env = buildEnv(req.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Cancel = func() error {
		// Default cancellation is SIGKILL; killing the whole process
		// group catches grandchildren the Setsid detached.
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return cmd.Process.Kill()
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return &wire.RunProcessResponse{ExitCode: -1, Error: fmt.Sprintf("start %s: %v", executable, err)}
	}
	handle := a.procs.track(req.Executable, cmd.Process)
	err = cmd.Wait()
	a.procs.finish(handle, cmd.ProcessState)

	resp := &wire.RunProcessResponse{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		resp.ExitCode = -1
		resp.Error = fmt.Sprintf("process %s timed out after %s", req.Executable, timeout)
	case err != nil:
		if exitErr, ok := err.(*exec.ExitError); ok {
			resp.ExitCode = int64(exitErr.ExitCode())
		} else {
			resp.ExitCode = -1
			resp.Error = err.Error()
		}
	default:
		resp.ExitCode = int64(cmd.ProcessState.ExitCode())
	}
	return resp
}

// resolveExecutable finds a relative executable through an explicit
// PATH walk; absolute paths are taken as-is.
func resolveExecutable(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty executable")
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	if strings.ContainsRune(name, os.PathSeparator) {
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", err
		}
		return abs, nil
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("executable %q not found in PATH", name)
}

// buildEnv starts from the ambient environment, scrubs the color and
// history variables, applies the forced set, then the request's own.
func buildEnv(extra []wire.EnvVar) []string {
	drop := make(map[string]struct{}, len(scrubbedEnvVars))
	for _, k := range scrubbedEnvVars {
		drop[k] = struct{}{}
	}
	var env []string
	for _, kv := range os.Environ() {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		key := kv[:eq]
		if _, scrub := drop[key]; scrub {
			continue
		}
		if _, forced := forcedEnvVars[key]; forced {
			continue
		}
		env = append(env, kv)
	}
	for k, v := range forcedEnvVars {
		env = append(env, k+"="+v)
	}
	for _, kv := range extra {
		env = append(env, kv.Key+"="+kv.Value)
	}
	return env
}
