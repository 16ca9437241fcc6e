package ptymux

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/shellmind/cli/internal/ptymux/wire"
)

// StdioHost runs the host channel over a plain read/write pair
// (stdin/stdout when launched by the desktop host, or an SSH-forwarded
// stream).
type StdioHost struct {
	mu  sync.Mutex
	w   io.Writer
	mux *Multiplexer
}

// NewStdioHost wires m to the rw pair. Call Run to pump inbound frames.
func NewStdioHost(m *Multiplexer, w io.Writer) *StdioHost {
	h := &StdioHost{w: w, mux: m}
	m.SetHost(h)
	return h
}

// WriteHostbound forwards one envelope to the host.
func (h *StdioHost) WriteHostbound(hb *wire.Hostbound) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return wire.WriteFrame(h.w, hb.Marshal())
}

// Run pumps clientbound frames from r into the multiplexer until EOF.
func (h *StdioHost) Run(ctx context.Context, r io.Reader) error {
	reader := wire.NewFrameReader(r)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		payload, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("ptymux: host channel read: %w", err)
		}
		cb, err := wire.UnmarshalClientbound(payload)
		if err != nil {
			h.mux.cfg.Logger.Warn("malformed clientbound frame from host", "error", err)
			continue
		}
		if err := h.mux.DeliverClientbound(cb); err != nil {
			h.mux.cfg.Logger.Warn("clientbound delivery failed", "error", err)
		}
	}
}

// WebSocketHost serves the host channel on a localhost WebSocket, one
// connected host at a time.
type WebSocketHost struct {
	mux      *Multiplexer
	upgrader websocket.Upgrader

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketHost wires m to a WebSocket endpoint handler.
func NewWebSocketHost(m *Multiplexer) *WebSocketHost {
	h := &WebSocketHost{
		mux: m,
		upgrader: websocket.Upgrader{
			// The listener binds localhost only; the origin header of a
			// local desktop host is not meaningful.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	m.SetHost(h)
	return h
}

// WriteHostbound forwards one envelope to the connected host, dropping
// it when no host is attached.
func (h *WebSocketHost) WriteHostbound(hb *wire.Hostbound) error {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return nil
	}
	frame, err := wire.EncodeFrame(hb.Marshal(), false)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// ServeHTTP upgrades the request and pumps clientbound frames until the
// peer disconnects. A second host connection replaces the first.
func (h *WebSocketHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	if h.conn != nil {
		h.conn.Close()
	}
	h.conn = conn
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.conn == conn {
			h.conn = nil
		}
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		payload, err := wire.DecodeFrame(trimNewline(data))
		if err != nil {
			h.mux.cfg.Logger.Warn("malformed frame from websocket host", "error", err)
			continue
		}
		cb, err := wire.UnmarshalClientbound(payload)
		if err != nil {
			h.mux.cfg.Logger.Warn("malformed clientbound frame from host", "error", err)
			continue
		}
		if err := h.mux.DeliverClientbound(cb); err != nil {
			h.mux.cfg.Logger.Warn("clientbound delivery failed", "error", err)
		}
	}
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
