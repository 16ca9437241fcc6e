package ptymux

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shellmind/cli/internal/ptymux/wire"
)

// hostRecorder captures everything the multiplexer forwards to the host.
type hostRecorder struct {
	mu   sync.Mutex
	msgs []*wire.Hostbound
}

func (h *hostRecorder) WriteHostbound(hb *wire.Hostbound) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, hb)
	return nil
}

func (h *hostRecorder) all() []*wire.Hostbound {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*wire.Hostbound(nil), h.msgs...)
}

// agentConn is the test double for a connected agent.
type agentConn struct {
	t    *testing.T
	conn net.Conn
	r    *wire.FrameReader
}

func dialAgent(t *testing.T, m *Multiplexer) *agentConn {
	t.Helper()
	client, server := net.Pipe()
	go m.HandleAgentConn(context.Background(), server)
	return &agentConn{t: t, conn: client, r: wire.NewFrameReader(client)}
}

func (a *agentConn) send(hb *wire.Hostbound) {
	a.t.Helper()
	require.NoError(a.t, wire.WriteFrame(a.conn, hb.Marshal()))
}

func (a *agentConn) recv() *wire.Clientbound {
	a.t.Helper()
	a.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	payload, err := a.r.Next()
	require.NoError(a.t, err)
	cb, err := wire.UnmarshalClientbound(payload)
	require.NoError(a.t, err)
	return cb
}

// recvUntil drains clientbound traffic until match returns true,
// tolerating interleaved pings.
func (a *agentConn) recvUntil(match func(*wire.Clientbound) bool) *wire.Clientbound {
	a.t.Helper()
	for i := 0; i < 20; i++ {
		cb := a.recv()
		if match(cb) {
			return cb
		}
	}
	a.t.Fatal("expected clientbound message never arrived")
	return nil
}

func (a *agentConn) handshake(id, secret, parentID string) *wire.HandshakeResponse {
	a.t.Helper()
	a.send(&wire.Hostbound{Handshake: &wire.Handshake{ID: id, Secret: secret, ParentID: parentID}})
	cb := a.recvUntil(func(cb *wire.Clientbound) bool { return cb.Handshake != nil })
	return cb.Handshake
}

func newTestMux() *Multiplexer {
	return New(Config{PingInterval: time.Hour, ReapAfter: time.Hour})
}

func TestHandshakeAcceptsNewSession(t *testing.T) {
	m := newTestMux()
	a := dialAgent(t, m)
	defer a.conn.Close()

	resp := a.handshake("sess-a", "secret-1", "")
	require.True(t, resp.Success)
	require.Equal(t, []string{"sess-a"}, m.SessionIDs())
}

func TestHandshakeSameSecretRefreshesWriter(t *testing.T) {
	m := newTestMux()
	a1 := dialAgent(t, m)
	require.True(t, a1.handshake("sess-a", "s", "").Success)

	a2 := dialAgent(t, m)
	require.True(t, a2.handshake("sess-a", "s", "").Success)
	require.Equal(t, []string{"sess-a"}, m.SessionIDs())

	// Traffic now reaches the refreshed writer.
	require.NoError(t, m.DeliverClientbound(&wire.Clientbound{
		Request: &wire.ClientRequest{SessionID: "sess-a", Nonce: 1, InsertText: &wire.InsertText{Insertion: "ls\n", Immediate: true}},
	}))
	cb := a2.recvUntil(func(cb *wire.Clientbound) bool { return cb.Request != nil })
	require.Equal(t, "ls\n", cb.Request.InsertText.Insertion)
}

func TestHandshakeWrongSecretIsRejectedAndDropped(t *testing.T) {
	m := newTestMux()
	a1 := dialAgent(t, m)
	require.True(t, a1.handshake("sess-a", "right", "").Success)

	a2 := dialAgent(t, m)
	resp := a2.handshake("sess-a", "wrong", "")
	require.False(t, resp.Success)

	// The connection is dropped after the rejection.
	a2.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := a2.r.Next()
	require.ErrorIs(t, err, io.EOF)

	// The original session is untouched.
	require.Equal(t, []string{"sess-a"}, m.SessionIDs())
}

func TestHandshakeGeneratesIDWhenAbsent(t *testing.T) {
	m := newTestMux()
	a := dialAgent(t, m)
	resp := a.handshake("", "s", "")
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.ID)
	require.Equal(t, []string{resp.ID}, m.SessionIDs())
}

func TestChildHandshakeNotifiesLinkedSessions(t *testing.T) {
	m := newTestMux()
	parent := dialAgent(t, m)
	require.True(t, parent.handshake("parent", "p", "").Success)

	child := dialAgent(t, m)
	require.True(t, child.handshake("child", "c", "parent").Success)

	cb := parent.recvUntil(func(cb *wire.Clientbound) bool {
		return cb.Request != nil && cb.Request.NotifyChild != nil
	})
	require.Equal(t, "child", cb.Request.NotifyChild.ChildID)
	require.Equal(t, "parent", cb.Request.NotifyChild.ParentID)
}

func TestAgentRequestsAreForwardedToHost(t *testing.T) {
	m := newTestMux()
	rec := &hostRecorder{}
	m.SetHost(rec)

	a := dialAgent(t, m)
	require.True(t, a.handshake("sess-a", "s", "").Success)
	a.send(&wire.Hostbound{Request: &wire.HostRequest{
		Nonce:      3,
		EditBuffer: &wire.EditBuffer{Text: "git sta", Cursor: 7},
	}})

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := rec.all()[0]
	require.Equal(t, "sess-a", got.Request.SessionID)
	require.Equal(t, "git sta", got.Request.EditBuffer.Text)
}

func TestDisconnectResolvesPendingWithDisconnected(t *testing.T) {
	m := newTestMux()
	rec := &hostRecorder{}
	m.SetHost(rec)

	a := dialAgent(t, m)
	require.True(t, a.handshake("sess-a", "s", "").Success)
	require.NoError(t, m.DeliverClientbound(&wire.Clientbound{
		Request: &wire.ClientRequest{SessionID: "sess-a", Nonce: 42, RunProcess: &wire.RunProcess{Executable: "sleep"}},
	}))
	a.conn.Close()

	require.Eventually(t, func() bool {
		for _, hb := range rec.all() {
			if hb.Response != nil && hb.Response.Disconnected && hb.Response.Nonce == 42 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, m.SessionIDs())
}

func TestDeliverToUnknownSession(t *testing.T) {
	m := newTestMux()
	err := m.DeliverClientbound(&wire.Clientbound{
		Request: &wire.ClientRequest{SessionID: "ghost", Nonce: 1, Diagnostics: &wire.Diagnostics{}},
	})
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestPongUpdatesLivenessAndSilentSessionsAreReaped(t *testing.T) {
	m := New(Config{PingInterval: time.Hour, ReapAfter: 50 * time.Millisecond})
	a := dialAgent(t, m)
	require.True(t, a.handshake("sess-a", "s", "").Success)

	// A prompt pong keeps the session alive through one sweep.
	a.send(&wire.Hostbound{Pong: &wire.Pong{MessageID: 1}})
	time.Sleep(20 * time.Millisecond)
	m.sweep(1)
	require.Equal(t, []string{"sess-a"}, m.SessionIDs())

	// Silence past the deadline reaps it.
	time.Sleep(80 * time.Millisecond)
	m.sweep(2)
	require.Empty(t, m.SessionIDs())
}

func TestSweepPingsLiveSessions(t *testing.T) {
	m := newTestMux()
	a := dialAgent(t, m)
	require.True(t, a.handshake("sess-a", "s", "").Success)

	go m.sweep(7)
	cb := a.recvUntil(func(cb *wire.Clientbound) bool { return cb.Ping != nil })
	require.Equal(t, uint64(7), cb.Ping.MessageID)
}

// syncBuffer is a goroutine-safe bytes.Buffer for host-channel capture.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func TestStdioHostRoundTrip(t *testing.T) {
	m := newTestMux()
	var hostOut syncBuffer
	h := NewStdioHost(m, &hostOut)

	a := dialAgent(t, m)
	require.True(t, a.handshake("sess-a", "s", "").Success)

	// Clientbound: host asks the agent to insert text.
	cbFrame := &wire.Clientbound{Request: &wire.ClientRequest{
		SessionID: "sess-a", Nonce: 1, InsertText: &wire.InsertText{Insertion: "ls\n", Immediate: true},
	}}
	var hostIn bytes.Buffer
	require.NoError(t, wire.WriteFrame(&hostIn, cbFrame.Marshal()))
	require.NoError(t, h.Run(context.Background(), &hostIn))

	cb := a.recvUntil(func(cb *wire.Clientbound) bool { return cb.Request != nil })
	require.Equal(t, "ls\n", cb.Request.InsertText.Insertion)

	// Hostbound: the agent's response lands on the host writer.
	a.send(&wire.Hostbound{Response: &wire.HostResponse{Nonce: 1, Success: true}})
	require.Eventually(t, func() bool { return hostOut.Len() > 0 }, 2*time.Second, 10*time.Millisecond)

	fr := wire.NewFrameReader(bytes.NewReader(hostOut.Bytes()))
	payload, err := fr.Next()
	require.NoError(t, err)
	hb, err := wire.UnmarshalHostbound(payload)
	require.NoError(t, err)
	require.True(t, hb.Response.Success)
	require.Equal(t, "sess-a", hb.Response.SessionID)
}
