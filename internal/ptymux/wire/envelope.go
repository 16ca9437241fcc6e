package wire

import "google.golang.org/protobuf/encoding/protowire"

// ClientRequest is a host-originated request addressed to one session.
// Exactly one inner field is set.
type ClientRequest struct {
	SessionID      string
	Nonce          uint64
	InsertText     *InsertText
	SetBuffer      *SetBuffer
	RunProcess     *RunProcess
	Intercepts     *SetIntercepts
	SetVisible     *SetVisible
	Diagnostics    *Diagnostics
	InsertOnNewCmd *InsertOnNewCmd
	NotifyChild    *NotifyChildSessionStarted
}

func (m *ClientRequest) marshal(b []byte) []byte {
	b = appendString(b, 1, m.SessionID)
	b = appendUint(b, 2, m.Nonce)
	b = appendMessage(b, 3, m.InsertText)
	b = appendMessage(b, 4, m.SetBuffer)
	b = appendMessage(b, 5, m.RunProcess)
	b = appendMessage(b, 6, m.Intercepts)
	b = appendMessage(b, 7, m.SetVisible)
	if m.Diagnostics != nil {
		b = protowire.AppendTag(b, 8, protowire.BytesType)
		b = protowire.AppendBytes(b, nil)
	}
	b = appendMessage(b, 9, m.InsertOnNewCmd)
	b = appendMessage(b, 10, m.NotifyChild)
	return b
}

func unmarshalClientRequest(b []byte) (*ClientRequest, error) {
	m := &ClientRequest{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		var raw []byte
		switch num {
		case 1:
			m.SessionID, b, err = consumeString(b)
		case 2:
			m.Nonce, b, err = consumeUint(b)
		case 3:
			if raw, b, err = consumeBytes(b); err == nil {
				m.InsertText, err = unmarshalInsertText(raw)
			}
		case 4:
			if raw, b, err = consumeBytes(b); err == nil {
				m.SetBuffer, err = unmarshalSetBuffer(raw)
			}
		case 5:
			if raw, b, err = consumeBytes(b); err == nil {
				m.RunProcess, err = unmarshalRunProcess(raw)
			}
		case 6:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Intercepts, err = unmarshalSetIntercepts(raw)
			}
		case 7:
			if raw, b, err = consumeBytes(b); err == nil {
				m.SetVisible, err = unmarshalSetVisible(raw)
			}
		case 8:
			if _, b, err = consumeBytes(b); err == nil {
				m.Diagnostics = &Diagnostics{}
			}
		case 9:
			if raw, b, err = consumeBytes(b); err == nil {
				m.InsertOnNewCmd, err = unmarshalInsertOnNewCmd(raw)
			}
		case 10:
			if raw, b, err = consumeBytes(b); err == nil {
				m.NotifyChild, err = unmarshalNotifyChild(raw)
			}
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// ClientResponse answers an agent-originated request.
type ClientResponse struct {
	SessionID  string
	Nonce      uint64
	Suggestion *InlineSuggestion
	Success    bool
}

func (m *ClientResponse) marshal(b []byte) []byte {
	b = appendString(b, 1, m.SessionID)
	b = appendUint(b, 2, m.Nonce)
	b = appendMessage(b, 3, m.Suggestion)
	b = appendBool(b, 4, m.Success)
	return b
}

func unmarshalClientResponse(b []byte) (*ClientResponse, error) {
	m := &ClientResponse{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		var raw []byte
		switch num {
		case 1:
			m.SessionID, b, err = consumeString(b)
		case 2:
			m.Nonce, b, err = consumeUint(b)
		case 3:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Suggestion, err = unmarshalInlineSuggestion(raw)
			}
		case 4:
			m.Success, b, err = consumeBool(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// Clientbound is the host → agent envelope.
type Clientbound struct {
	Handshake *HandshakeResponse
	Request   *ClientRequest
	Response  *ClientResponse
	Ping      *Ping
	Pong      *Pong
}

// Marshal encodes the envelope.
func (m *Clientbound) Marshal() []byte {
	var b []byte
	b = appendMessage(b, 1, m.Handshake)
	b = appendMessage(b, 2, m.Request)
	b = appendMessage(b, 3, m.Response)
	b = appendMessage(b, 4, m.Ping)
	b = appendMessage(b, 5, m.Pong)
	return b
}

// UnmarshalClientbound decodes a Clientbound envelope.
func UnmarshalClientbound(b []byte) (*Clientbound, error) {
	m := &Clientbound{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		var raw []byte
		switch num {
		case 1:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Handshake, err = unmarshalHandshakeResponse(raw)
			}
		case 2:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Request, err = unmarshalClientRequest(raw)
			}
		case 3:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Response, err = unmarshalClientResponse(raw)
			}
		case 4:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Ping, err = unmarshalPing(raw)
			}
		case 5:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Pong, err = unmarshalPong(raw)
			}
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// HostRequest is an agent-originated request.
type HostRequest struct {
	SessionID      string
	Nonce          uint64
	EditBuffer     *EditBuffer
	Prompt         *Prompt
	PreExec        *PreExec
	PostExec       *PostExec
	InterceptedKey *InterceptedKey
}

func (m *HostRequest) marshal(b []byte) []byte {
	b = appendString(b, 1, m.SessionID)
	b = appendUint(b, 2, m.Nonce)
	b = appendMessage(b, 3, m.EditBuffer)
	if m.Prompt != nil {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, nil)
	}
	b = appendMessage(b, 5, m.PreExec)
	b = appendMessage(b, 6, m.PostExec)
	b = appendMessage(b, 7, m.InterceptedKey)
	return b
}

func unmarshalHostRequest(b []byte) (*HostRequest, error) {
	m := &HostRequest{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		var raw []byte
		switch num {
		case 1:
			m.SessionID, b, err = consumeString(b)
		case 2:
			m.Nonce, b, err = consumeUint(b)
		case 3:
			if raw, b, err = consumeBytes(b); err == nil {
				m.EditBuffer, err = unmarshalEditBuffer(raw)
			}
		case 4:
			if _, b, err = consumeBytes(b); err == nil {
				m.Prompt = &Prompt{}
			}
		case 5:
			if raw, b, err = consumeBytes(b); err == nil {
				m.PreExec, err = unmarshalPreExec(raw)
			}
		case 6:
			if raw, b, err = consumeBytes(b); err == nil {
				m.PostExec, err = unmarshalPostExec(raw)
			}
		case 7:
			if raw, b, err = consumeBytes(b); err == nil {
				m.InterceptedKey, err = unmarshalInterceptedKey(raw)
			}
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// HostResponse answers a host-originated request. Disconnected marks a
// response synthesized by the multiplexer when the session vanished with
// the request still in flight.
type HostResponse struct {
	SessionID    string
	Nonce        uint64
	RunProcess   *RunProcessResponse
	Diagnostics  *DiagnosticsResponse
	Success      bool
	Disconnected bool
}

func (m *HostResponse) marshal(b []byte) []byte {
	b = appendString(b, 1, m.SessionID)
	b = appendUint(b, 2, m.Nonce)
	b = appendMessage(b, 3, m.RunProcess)
	b = appendMessage(b, 4, m.Diagnostics)
	b = appendBool(b, 5, m.Success)
	b = appendBool(b, 6, m.Disconnected)
	return b
}

func unmarshalHostResponse(b []byte) (*HostResponse, error) {
	m := &HostResponse{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		var raw []byte
		switch num {
		case 1:
			m.SessionID, b, err = consumeString(b)
		case 2:
			m.Nonce, b, err = consumeUint(b)
		case 3:
			if raw, b, err = consumeBytes(b); err == nil {
				m.RunProcess, err = unmarshalRunProcessResponse(raw)
			}
		case 4:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Diagnostics, err = unmarshalDiagnosticsResponse(raw)
			}
		case 5:
			m.Success, b, err = consumeBool(b)
		case 6:
			m.Disconnected, b, err = consumeBool(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// Hostbound is the agent → host envelope.
type Hostbound struct {
	Handshake *Handshake
	Request   *HostRequest
	Response  *HostResponse
	Ping      *Ping
	Pong      *Pong
}

// Marshal encodes the envelope.
func (m *Hostbound) Marshal() []byte {
	var b []byte
	b = appendMessage(b, 1, m.Handshake)
	b = appendMessage(b, 2, m.Request)
	b = appendMessage(b, 3, m.Response)
	b = appendMessage(b, 4, m.Ping)
	b = appendMessage(b, 5, m.Pong)
	return b
}

// UnmarshalHostbound decodes a Hostbound envelope.
func UnmarshalHostbound(b []byte) (*Hostbound, error) {
	m := &Hostbound{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		var raw []byte
		switch num {
		case 1:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Handshake, err = unmarshalHandshake(raw)
			}
		case 2:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Request, err = unmarshalHostRequest(raw)
			}
		case 3:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Response, err = unmarshalHostResponse(raw)
			}
		case 4:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Ping, err = unmarshalPing(raw)
			}
		case 5:
			if raw, b, err = consumeBytes(b); err == nil {
				m.Pong, err = unmarshalPong(raw)
			}
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}
