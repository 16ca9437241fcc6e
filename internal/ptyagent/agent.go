// Package ptyagent is the per-shell-session process that owns a
// pseudoterminal, maintains a model of the user's edit buffer, renders
// inline completions after the cursor, enforces keystroke intercepts,
// and executes host-requested processes, all bridged to the central
// multiplexer over the framed wire protocol.
package ptyagent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shellmind/cli/internal/ptymux/wire"
)

// InterceptMode mirrors the host-configured keystroke policy.
type InterceptMode int

const (
	// Unlocked passes every keystroke to the shell.
	Unlocked InterceptMode = iota
	// LockedInSession intercepts bound keys while the session has focus.
	LockedInSession
	// LockedGlobally intercepts bound keys regardless of focus.
	LockedGlobally
)

// dim SGR pair wrapping the ghost suggestion text.
const (
	sgrDim   = "\x1b[2m"
	sgrReset = "\x1b[0m"
)

// ShellContext is the observed state of the wrapped shell.
type ShellContext struct {
	Pid   int
	Shell string
	Cwd   string
}

// Config wires an Agent.
type Config struct {
	// ID is the session id; generated when empty.
	ID string
	// ParentID links a nested shell to the session that spawned it.
	ParentID string
	// PTY is the master side of the wrapped terminal; insertions and
	// ghost rendering write here.
	PTY io.Writer
	// Conn is the framed connection to the multiplexer.
	Conn io.ReadWriter
	// Shell describes the wrapped shell process.
	Shell  ShellContext
	Logger *slog.Logger
}

// Agent is one pty session. All mutable terminal state lives in
// explicit fields here, never in package globals. OnPromptRedraw resets
// the edit buffer, ghost text, pending intercept, and queued insertion
// together; the intercept table persists until the host replaces it.
type Agent struct {
	id       string
	secret   string
	parentID string
	logger   *slog.Logger

	pty     io.Writer
	conn    io.ReadWriter
	reader  *wire.FrameReader
	writeMu sync.Mutex

	mu sync.Mutex
	// edit buffer model
	buffer string
	cursor uint64
	// intercept table
	interceptMode    InterceptMode
	interceptVisible bool
	intercepts       map[string]string // key -> action identifier
	// one intercept may be in flight at a time; the next keystroke
	// abandons an unanswered one
	pendingIntercept string
	// ghost suggestion currently rendered after the cursor
	ghost string
	// queued insertion for the next prompt redraw
	queuedInsert *wire.InsertOnNewCmd

	shell ShellContext

	nonceMu sync.Mutex
	nonce   uint64
	pending map[uint64]chan *wire.ClientResponse

	procs *procRegistry
}

// New builds an Agent with a fresh handshake secret.
func New(cfg Config) *Agent {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{
		id:         cfg.ID,
		secret:     newSecret(),
		parentID:   cfg.ParentID,
		logger:     cfg.Logger,
		pty:        cfg.PTY,
		conn:       cfg.Conn,
		reader:     wire.NewFrameReader(cfg.Conn),
		shell:      cfg.Shell,
		intercepts: make(map[string]string),
		pending:    make(map[uint64]chan *wire.ClientResponse),
		procs:      newProcRegistry(),
	}
}

func newSecret() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "insecure-" + uuid.NewString()
	}
	return hex.EncodeToString(buf)
}

// ID returns the session id.
func (a *Agent) ID() string { return a.id }

// Secret returns the handshake secret, for export to child shells.
func (a *Agent) Secret() string { return a.secret }

// Handshake sends the opening handshake and waits for the response.
func (a *Agent) Handshake() error {
	err := a.sendHostbound(&wire.Hostbound{Handshake: &wire.Handshake{
		ID:       a.id,
		Secret:   a.secret,
		ParentID: a.parentID,
	}})
	if err != nil {
		return err
	}
	payload, err := a.reader.Next()
	if err != nil {
		return fmt.Errorf("ptyagent: handshake read: %w", err)
	}
	cb, err := wire.UnmarshalClientbound(payload)
	if err != nil {
		return err
	}
	if cb.Handshake == nil || !cb.Handshake.Success {
		return fmt.Errorf("ptyagent: handshake refused")
	}
	if cb.Handshake.ID != "" {
		a.id = cb.Handshake.ID
	}
	return nil
}

func (a *Agent) sendHostbound(hb *wire.Hostbound) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return wire.WriteFrame(a.conn, hb.Marshal())
}

// Run pumps clientbound traffic until the connection closes or ctx
// ends. Handshake must have succeeded first.
func (a *Agent) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		payload, err := a.reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		cb, err := wire.UnmarshalClientbound(payload)
		if err != nil {
			a.logger.Warn("malformed clientbound frame", "error", err)
			continue
		}
		a.dispatch(ctx, cb)
	}
}

func (a *Agent) dispatch(ctx context.Context, cb *wire.Clientbound) {
	switch {
	case cb.Ping != nil:
		_ = a.sendHostbound(&wire.Hostbound{Pong: &wire.Pong{MessageID: cb.Ping.MessageID}})
	case cb.Request != nil:
		a.handleRequest(ctx, cb.Request)
	case cb.Response != nil:
		a.resolveResponse(cb.Response)
	}
}

// handleRequest executes one host request and sends its response.
func (a *Agent) handleRequest(ctx context.Context, req *wire.ClientRequest) {
	resp := &wire.HostResponse{Nonce: req.Nonce}
	switch {
	case req.InsertText != nil:
		a.insertText(req.InsertText)
		resp.Success = true
	case req.SetBuffer != nil:
		a.mu.Lock()
		a.buffer = req.SetBuffer.Text
		a.cursor = req.SetBuffer.Cursor
		a.mu.Unlock()
		resp.Success = true
	case req.RunProcess != nil:
		// RunProcess is handled here in the agent, never the
		// multiplexer: the child must share this session's namespace.
		result := a.runProcess(ctx, req.RunProcess)
		resp.RunProcess = result
		resp.Success = result.Error == ""
	case req.Intercepts != nil:
		a.setIntercepts(req.Intercepts)
		resp.Success = true
	case req.SetVisible != nil:
		a.setVisible(req.SetVisible.Visible)
		resp.Success = true
	case req.Diagnostics != nil:
		resp.Diagnostics = a.diagnostics()
		resp.Success = true
	case req.InsertOnNewCmd != nil:
		a.mu.Lock()
		a.queuedInsert = req.InsertOnNewCmd
		a.mu.Unlock()
		resp.Success = true
	case req.NotifyChild != nil:
		a.logger.Debug("child session started", "child", req.NotifyChild.ChildID)
		resp.Success = true
	}
	if req.Nonce != 0 {
		if err := a.sendHostbound(&wire.Hostbound{Response: resp}); err != nil {
			a.logger.Warn("response send failed", "error", err)
		}
	}
}

// insertText writes the requested edit to the PTY: backspaces for the
// deletion count, then the insertion bytes. A rendered ghost is cleared
// first so the insertion never lands inside stale dim text.
func (a *Agent) insertText(req *wire.InsertText) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearGhostLocked()
	for i := uint64(0); i < req.Deletion; i++ {
		io.WriteString(a.pty, "\b \b")
	}
	if req.Insertion != "" {
		io.WriteString(a.pty, req.Insertion)
		a.buffer += req.Insertion
		a.cursor += uint64(len(req.Insertion))
	}
}

func (a *Agent) setIntercepts(req *wire.SetIntercepts) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if req.Override {
		a.intercepts = make(map[string]string)
	}
	for _, action := range req.Actions {
		a.intercepts[action.Key] = action.Identifier
	}
	switch {
	case req.InterceptGlobally:
		a.interceptMode = LockedGlobally
	case req.InterceptBound:
		a.interceptMode = LockedInSession
	default:
		a.interceptMode = Unlocked
	}
}

// setVisible toggles host UI visibility; intercepts drop while no UI
// exists to receive them.
func (a *Agent) setVisible(visible bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interceptVisible = visible
	if !visible {
		a.interceptMode = Unlocked
		a.pendingIntercept = ""
	}
}

func (a *Agent) diagnostics() *wire.DiagnosticsResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &wire.DiagnosticsResponse{
		Shell:  a.shell.Shell,
		Cwd:    a.shell.Cwd,
		Pid:    int64(a.shell.Pid),
		Buffer: a.buffer,
		Cursor: a.cursor,
	}
}

// HandleKeystroke runs one key through the intercept table. It returns
// true when the key was suppressed from the shell. An intercept still
// awaiting a host response is abandoned when the next keystroke lands.
func (a *Agent) HandleKeystroke(key string) bool {
	a.mu.Lock()
	if a.pendingIntercept != "" {
		// The host never answered the previous intercept; abandon it.
		a.pendingIntercept = ""
	}
	if a.interceptMode == Unlocked || !a.interceptVisible {
		a.mu.Unlock()
		return false
	}
	identifier, bound := a.intercepts[key]
	if !bound {
		a.mu.Unlock()
		return false
	}
	a.pendingIntercept = key
	a.mu.Unlock()

	err := a.sendHostbound(&wire.Hostbound{Request: &wire.HostRequest{
		Nonce:          a.nextNonce(),
		InterceptedKey: &wire.InterceptedKey{Context: identifier, Key: key},
	}})
	if err != nil {
		a.logger.Warn("intercept send failed", "key", key, "error", err)
	}
	return true
}

func (a *Agent) nextNonce() uint64 {
	a.nonceMu.Lock()
	defer a.nonceMu.Unlock()
	a.nonce++
	return a.nonce
}

// UpdateBuffer records the user's current edit state and forwards it to
// the host, which may answer with an inline suggestion.
func (a *Agent) UpdateBuffer(text string, cursor uint64) {
	a.mu.Lock()
	a.buffer = text
	a.cursor = cursor
	a.clearGhostLocked()
	a.mu.Unlock()

	if text == "" {
		return
	}
	nonce := a.nextNonce()
	ch := make(chan *wire.ClientResponse, 1)
	a.nonceMu.Lock()
	a.pending[nonce] = ch
	a.nonceMu.Unlock()

	err := a.sendHostbound(&wire.Hostbound{Request: &wire.HostRequest{
		Nonce:      nonce,
		EditBuffer: &wire.EditBuffer{Text: text, Cursor: cursor},
	}})
	if err != nil {
		a.dropPending(nonce)
		return
	}

	go func() {
		resp, ok := <-ch
		if !ok || resp == nil || resp.Suggestion == nil {
			return
		}
		a.renderGhost(text, resp.Suggestion.Insertion)
	}()
}

func (a *Agent) dropPending(nonce uint64) {
	a.nonceMu.Lock()
	ch, ok := a.pending[nonce]
	delete(a.pending, nonce)
	a.nonceMu.Unlock()
	if ok {
		close(ch)
	}
}

func (a *Agent) resolveResponse(resp *wire.ClientResponse) {
	a.nonceMu.Lock()
	ch, ok := a.pending[resp.Nonce]
	delete(a.pending, resp.Nonce)
	a.nonceMu.Unlock()
	if ok {
		ch <- resp
		close(ch)
	}
}

// renderGhost draws the suggestion dimmed after the cursor, then moves
// the cursor back so the user keeps typing in place. Stale suggestions
// (the buffer moved on) are dropped.
func (a *Agent) renderGhost(forBuffer, suggestion string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.buffer != forBuffer || suggestion == "" {
		return
	}
	a.ghost = suggestion
	fmt.Fprintf(a.pty, "%s%s%s\x1b[%dD", sgrDim, suggestion, sgrReset, len(suggestion))
}

// AcceptSuggestion commits the rendered ghost: the dim text is cleared
// and the suggestion is typed for real.
func (a *Agent) AcceptSuggestion() bool {
	a.mu.Lock()
	ghost := a.ghost
	a.mu.Unlock()
	if ghost == "" {
		return false
	}
	a.insertText(&wire.InsertText{Insertion: ghost, Immediate: true})
	return true
}

// RejectSuggestion clears the ghost; called on any keystroke that is
// not the accept key.
func (a *Agent) RejectSuggestion() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearGhostLocked()
}

// clearGhostLocked erases rendered ghost glyphs from the line.
func (a *Agent) clearGhostLocked() {
	if a.ghost == "" {
		return
	}
	n := len(a.ghost)
	fmt.Fprintf(a.pty, "\x1b[%dX", n)
	a.ghost = ""
}

// OnPromptRedraw resets per-prompt state and flushes a queued
// insertion.
func (a *Agent) OnPromptRedraw() {
	a.mu.Lock()
	a.buffer = ""
	a.cursor = 0
	a.ghost = ""
	a.pendingIntercept = ""
	queued := a.queuedInsert
	a.queuedInsert = nil
	a.mu.Unlock()

	_ = a.sendHostbound(&wire.Hostbound{Request: &wire.HostRequest{
		Nonce:  a.nextNonce(),
		Prompt: &wire.Prompt{},
	}})
	if queued != nil {
		text := queued.Text
		if queued.Execute {
			text += "\n"
		}
		a.insertText(&wire.InsertText{Insertion: text, Immediate: true})
	}
}

// ChildEnv returns the environment additions a spawned child shell
// needs to join this session tree.
func (a *Agent) ChildEnv() []string {
	return []string{
		"QTERM_SESSION_ID=" + a.id,
	}
}

// Close kills any children still tracked by RunProcess.
func (a *Agent) Close() {
	a.procs.killAll()
}
