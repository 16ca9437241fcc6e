// Package ptymux implements the central multiplexer: it owns the
// registry of pty-agent sessions, authenticates their handshakes,
// bridges agent traffic to the remote host channel, keeps sessions live
// with pings, and reaps the silent ones.
package ptymux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shellmind/cli/internal/ptymux/wire"
)

// ErrTransportClosed marks IPC failures that tear down one session only.
var ErrTransportClosed = errors.New("ptymux: transport closed")

// ErrHandshakeRejected is a secret mismatch; never retried automatically.
var ErrHandshakeRejected = errors.New("ptymux: handshake rejected")

// ErrUnknownSession is returned for clientbound traffic addressed to a
// session not in the registry.
var ErrUnknownSession = errors.New("ptymux: unknown session")

// sessionSendBuffer sizes each session's outbound channel; a full
// buffer means the agent stopped draining and the send fails fast.
const sessionSendBuffer = 64

// Config tunes the multiplexer's liveness behavior.
type Config struct {
	// PingInterval is how often every session is pinged.
	PingInterval time.Duration
	// ReapAfter reaps a session silent for this long.
	ReapAfter time.Duration
	Logger    *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = 5 * time.Second
	}
	if c.ReapAfter <= 0 {
		c.ReapAfter = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// session is one registered pty-agent. The registry maps ids to
// sessions arena-style; the writer goroutine holds the only reference
// to the connection for sends, so nothing here points back at the
// multiplexer.
type session struct {
	id       string
	secret   string
	parentID string

	out  chan *wire.Clientbound
	quit chan struct{}

	mu          sync.Mutex
	conn        io.WriteCloser
	lastReceive time.Time
	closed      bool
}

func newSession(id, secret, parentID string, conn io.WriteCloser) *session {
	s := &session{
		id:          id,
		secret:      secret,
		parentID:    parentID,
		out:         make(chan *wire.Clientbound, sessionSendBuffer),
		quit:        make(chan struct{}),
		conn:        conn,
		lastReceive: time.Now(),
	}
	go s.writerLoop()
	return s
}

// writerLoop drains the outbound channel onto whichever connection is
// current, exiting when the session is removed.
func (s *session) writerLoop() {
	for {
		select {
		case <-s.quit:
			return
		case cb := <-s.out:
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				continue
			}
			// Write errors are left to the read loop: it notices the
			// dead peer and removes the session.
			_ = wire.WriteFrame(conn, cb.Marshal())
		}
	}
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastReceive = time.Now()
	s.mu.Unlock()
}

func (s *session) silentSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReceive
}

// send enqueues one clientbound envelope for the writer goroutine.
func (s *session) send(cb *wire.Clientbound) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	select {
	case s.out <- cb:
		return nil
	case <-s.quit:
		return ErrTransportClosed
	default:
		return fmt.Errorf("%w: session %s send buffer full", ErrTransportClosed, s.id)
	}
}

// swapConn installs a fresh connection on reconnect, returning the old
// one for closing.
func (s *session) swapConn(conn io.WriteCloser) io.WriteCloser {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.conn
	s.conn = conn
	s.lastReceive = time.Now()
	return old
}

// isCurrent reports whether conn is the session's live connection.
func (s *session) isCurrent(conn io.WriteCloser) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == conn
}

// shutdown stops the writer goroutine and closes the connection.
func (s *session) shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	close(s.quit)
	if conn != nil {
		conn.Close()
	}
}

// HostWriter receives hostbound envelopes bound for the remote host.
type HostWriter interface {
	WriteHostbound(hb *wire.Hostbound) error
}

// Multiplexer aggregates agent sessions and bridges them to the host.
type Multiplexer struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*session
	// pending tracks host-originated request nonces per session so a
	// disconnect can resolve them with Disconnected responses.
	pending map[string]map[uint64]struct{}

	hostMu sync.Mutex
	host   HostWriter

	sessionGauge prometheus.Gauge
	pingCounter  prometheus.Counter
}

// New builds a Multiplexer.
func New(cfg Config) *Multiplexer {
	return &Multiplexer{
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*session),
		pending:  make(map[string]map[uint64]struct{}),
		sessionGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shellmind_mux_sessions",
			Help: "Connected pty-agent sessions.",
		}),
		pingCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shellmind_mux_pings_total",
			Help: "Pings sent to agents.",
		}),
	}
}

// Collectors exposes the multiplexer's metrics for registration.
func (m *Multiplexer) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.sessionGauge, m.pingCounter}
}

// SetHost installs the host channel writer.
func (m *Multiplexer) SetHost(h HostWriter) {
	m.hostMu.Lock()
	m.host = h
	m.hostMu.Unlock()
}

func (m *Multiplexer) toHost(hb *wire.Hostbound) {
	m.hostMu.Lock()
	h := m.host
	m.hostMu.Unlock()
	if h == nil {
		return
	}
	if err := h.WriteHostbound(hb); err != nil {
		m.cfg.Logger.Error("host channel write failed", "error", err)
	}
}

// SessionIDs returns the ids of all live sessions.
func (m *Multiplexer) SessionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// handshake registers or resumes a session per the presented secret.
// The returned bool reports acceptance; a rejected handshake must drop
// the connection.
func (m *Multiplexer) handshake(hs *wire.Handshake, conn io.WriteCloser) (*session, bool) {
	id := hs.ID
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	existing, ok := m.sessions[id]
	if ok {
		m.mu.Unlock()
		if existing.secret != hs.Secret {
			return nil, false
		}
		if old := existing.swapConn(conn); old != nil && old != conn {
			old.Close()
		}
		return existing, true
	}

	s := newSession(id, hs.Secret, hs.ParentID, conn)
	m.sessions[id] = s
	m.pending[id] = make(map[uint64]struct{})
	count := len(m.sessions)
	m.mu.Unlock()

	m.sessionGauge.Set(float64(count))
	if hs.ParentID != "" {
		m.notifyLinkedSessions(s)
	}
	return s, true
}

// notifyLinkedSessions fans out NotifyChildSessionStarted to every other
// session after a child handshake.
func (m *Multiplexer) notifyLinkedSessions(child *session) {
	m.mu.RLock()
	others := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.id != child.id {
			others = append(others, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range others {
		err := s.send(&wire.Clientbound{Request: &wire.ClientRequest{
			SessionID:   s.id,
			NotifyChild: &wire.NotifyChildSessionStarted{ChildID: child.id, ParentID: child.parentID},
		}})
		if err != nil {
			m.cfg.Logger.Warn("child-session notify failed", "session", s.id, "error", err)
		}
	}
}

// removeSession drops a session and resolves its in-flight host
// requests with Disconnected responses.
func (m *Multiplexer) removeSession(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, id)
	nonces := m.pending[id]
	delete(m.pending, id)
	count := len(m.sessions)
	m.mu.Unlock()

	m.sessionGauge.Set(float64(count))
	s.shutdown()
	for nonce := range nonces {
		m.toHost(&wire.Hostbound{Response: &wire.HostResponse{
			SessionID:    id,
			Nonce:        nonce,
			Disconnected: true,
		}})
	}
	m.cfg.Logger.Info("session removed", "session", id)
}

// dropConn removes the session only if conn is still its live
// connection; a stale handler whose connection was replaced by a
// reconnect must not tear down the fresh one.
func (m *Multiplexer) dropConn(s *session, conn io.WriteCloser) {
	if s.isCurrent(conn) {
		m.removeSession(s.id)
	}
}

// DeliverClientbound routes one host-originated envelope to its session.
func (m *Multiplexer) DeliverClientbound(cb *wire.Clientbound) error {
	var sessionID string
	var nonce uint64
	switch {
	case cb.Request != nil:
		sessionID = cb.Request.SessionID
		nonce = cb.Request.Nonce
	case cb.Response != nil:
		sessionID = cb.Response.SessionID
	default:
		return fmt.Errorf("ptymux: clientbound envelope carries no routable message")
	}

	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	if ok && nonce != 0 {
		m.pending[sessionID][nonce] = struct{}{}
	}
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if err := s.send(cb); err != nil {
		m.removeSession(sessionID)
		return err
	}
	return nil
}

// HandleAgentConn owns one agent connection: it authenticates the
// handshake, then pumps hostbound traffic until the peer goes away.
func (m *Multiplexer) HandleAgentConn(ctx context.Context, conn io.ReadWriteCloser) {
	defer conn.Close()
	reader := wire.NewFrameReader(conn)

	payload, err := reader.Next()
	if err != nil {
		return
	}
	hb, err := wire.UnmarshalHostbound(payload)
	if err != nil || hb.Handshake == nil {
		m.cfg.Logger.Warn("agent connection opened without handshake")
		return
	}

	s, ok := m.handshake(hb.Handshake, conn)
	if !ok {
		// Secret mismatch: refuse and drop, never retried here.
		_ = wire.WriteFrame(conn, (&wire.Clientbound{
			Handshake: &wire.HandshakeResponse{Success: false},
		}).Marshal())
		m.cfg.Logger.Warn("handshake rejected", "session", hb.Handshake.ID)
		return
	}
	if err := s.send(&wire.Clientbound{Handshake: &wire.HandshakeResponse{Success: true, ID: s.id}}); err != nil {
		m.dropConn(s, conn)
		return
	}
	m.cfg.Logger.Info("session connected", "session", s.id)

	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := reader.Next()
		if err != nil {
			m.dropConn(s, conn)
			return
		}
		hb, err := wire.UnmarshalHostbound(payload)
		if err != nil {
			m.cfg.Logger.Warn("malformed hostbound frame", "session", s.id, "error", err)
			continue
		}
		s.touch()
		switch {
		case hb.Pong != nil:
			// touch above is the whole job
		case hb.Ping != nil:
			_ = s.send(&wire.Clientbound{Pong: &wire.Pong{MessageID: hb.Ping.MessageID}})
		case hb.Request != nil:
			hb.Request.SessionID = s.id
			m.toHost(hb)
		case hb.Response != nil:
			hb.Response.SessionID = s.id
			m.mu.Lock()
			if nonces, ok := m.pending[s.id]; ok {
				delete(nonces, hb.Response.Nonce)
			}
			m.mu.Unlock()
			m.toHost(hb)
		case hb.Handshake != nil:
			// A re-handshake on a live connection just refreshes liveness.
		}
	}
}

// Run drives the ping/reap loop until ctx ends.
func (m *Multiplexer) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	var pingID uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingID++
			m.sweep(pingID)
		}
	}
}

// sweep pings every session and reaps the ones silent past the deadline.
func (m *Multiplexer) sweep(pingID uint64) {
	m.mu.RLock()
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	deadline := time.Now().Add(-m.cfg.ReapAfter)
	for _, s := range all {
		if s.silentSince().Before(deadline) {
			m.cfg.Logger.Info("reaping silent session", "session", s.id)
			m.removeSession(s.id)
			continue
		}
		m.pingCounter.Inc()
		if err := s.send(&wire.Clientbound{Ping: &wire.Ping{MessageID: pingID}}); err != nil {
			m.removeSession(s.id)
		}
	}
}

// Serve accepts agent connections from l until ctx ends.
func (m *Multiplexer) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go m.HandleAgentConn(ctx, conn)
	}
}
