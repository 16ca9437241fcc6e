// Package wire defines the packet protocol between pty-agents and the
// multiplexer: protobuf-encoded Clientbound (host → agent) and Hostbound
// (agent → host) envelopes inside base64-line frames. Messages are
// hand-marshaled with protowire so the schema lives next to the code that
// speaks it.
package wire

import (
	"errors"
	"reflect"

	"google.golang.org/protobuf/encoding/protowire"
)

var errMalformed = errors.New("wire: malformed message")

// ---- primitives ----------------------------------------------------------

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

type marshaler interface{ marshal([]byte) []byte }

// appendMessage skips nil sub-messages; every marshaler here is a
// pointer type, so a typed nil inside the interface must be caught too.
func appendMessage(b []byte, num protowire.Number, m marshaler) []byte {
	if m == nil || reflect.ValueOf(m).IsNil() {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.marshal(nil))
}

// walkFields walks one wire-format message, invoking visit per field. visit
// consumes the field payload and returns the remaining bytes.
func walkFields(b []byte, visit func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errMalformed
		}
		rest, err := visit(num, typ, b[n:])
		if err != nil {
			return err
		}
		b = rest
	}
	return nil
}

func consumeString(b []byte) (string, []byte, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", nil, errMalformed
	}
	return v, b[n:], nil
}

func consumeUint(b []byte) (uint64, []byte, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, nil, errMalformed
	}
	return v, b[n:], nil
}

func consumeInt(b []byte) (int64, []byte, error) {
	v, rest, err := consumeUint(b)
	return protowire.DecodeZigZag(v), rest, err
}

func consumeBool(b []byte) (bool, []byte, error) {
	v, rest, err := consumeUint(b)
	return v != 0, rest, err
}

func consumeBytes(b []byte) ([]byte, []byte, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, nil, errMalformed
	}
	return v, b[n:], nil
}

func skipField(b []byte, num protowire.Number, typ protowire.Type) ([]byte, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return nil, errMalformed
	}
	return b[n:], nil
}

// ---- leaf messages -------------------------------------------------------

// Handshake opens (or resumes) a session.
type Handshake struct {
	ID       string
	Secret   string
	ParentID string
}

func (m *Handshake) marshal(b []byte) []byte {
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.Secret)
	b = appendString(b, 3, m.ParentID)
	return b
}

func unmarshalHandshake(b []byte) (*Handshake, error) {
	m := &Handshake{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.ID, b, err = consumeString(b)
		case 2:
			m.Secret, b, err = consumeString(b)
		case 3:
			m.ParentID, b, err = consumeString(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// HandshakeResponse acknowledges or rejects a handshake.
type HandshakeResponse struct {
	Success bool
	ID      string
}

func (m *HandshakeResponse) marshal(b []byte) []byte {
	b = appendBool(b, 1, m.Success)
	b = appendString(b, 2, m.ID)
	return b
}

func unmarshalHandshakeResponse(b []byte) (*HandshakeResponse, error) {
	m := &HandshakeResponse{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Success, b, err = consumeBool(b)
		case 2:
			m.ID, b, err = consumeString(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// Ping and Pong keep sessions live.
type Ping struct{ MessageID uint64 }

func (m *Ping) marshal(b []byte) []byte { return appendUint(b, 1, m.MessageID) }

type Pong struct{ MessageID uint64 }

func (m *Pong) marshal(b []byte) []byte { return appendUint(b, 1, m.MessageID) }

func unmarshalPing(b []byte) (*Ping, error) {
	m := &Ping{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		if num == 1 {
			m.MessageID, b, err = consumeUint(b)
			return b, err
		}
		return skipField(b, num, typ)
	})
	return m, err
}

func unmarshalPong(b []byte) (*Pong, error) {
	p, err := unmarshalPing(b)
	if err != nil {
		return nil, err
	}
	return &Pong{MessageID: p.MessageID}, nil
}

// InsertText asks the agent to type (and optionally delete) at the
// cursor. The agent keeps no insertion lock and applies every insertion
// at once, so Immediate does not change how it is handled.
type InsertText struct {
	Insertion string
	Deletion  uint64
	Offset    int64
	Immediate bool
}

func (m *InsertText) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Insertion)
	b = appendUint(b, 2, m.Deletion)
	b = appendInt(b, 3, m.Offset)
	b = appendBool(b, 4, m.Immediate)
	return b
}

func unmarshalInsertText(b []byte) (*InsertText, error) {
	m := &InsertText{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Insertion, b, err = consumeString(b)
		case 2:
			m.Deletion, b, err = consumeUint(b)
		case 3:
			m.Offset, b, err = consumeInt(b)
		case 4:
			m.Immediate, b, err = consumeBool(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// SetBuffer replaces the agent's view of the edit buffer.
type SetBuffer struct {
	Text   string
	Cursor uint64
}

func (m *SetBuffer) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Text)
	b = appendUint(b, 2, m.Cursor)
	return b
}

func unmarshalSetBuffer(b []byte) (*SetBuffer, error) {
	m := &SetBuffer{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Text, b, err = consumeString(b)
		case 2:
			m.Cursor, b, err = consumeUint(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// EnvVar is one environment assignment for RunProcess.
type EnvVar struct {
	Key   string
	Value string
}

func (m *EnvVar) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Key)
	b = appendString(b, 2, m.Value)
	return b
}

func unmarshalEnvVar(b []byte) (*EnvVar, error) {
	m := &EnvVar{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Key, b, err = consumeString(b)
		case 2:
			m.Value, b, err = consumeString(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// RunProcess asks the agent to spawn a process in its own session.
type RunProcess struct {
	Executable       string
	Arguments        []string
	WorkingDirectory string
	Env              []EnvVar
	TimeoutMs        uint64
}

func (m *RunProcess) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Executable)
	for _, a := range m.Arguments {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, a)
	}
	b = appendString(b, 3, m.WorkingDirectory)
	for i := range m.Env {
		b = appendMessage(b, 4, &m.Env[i])
	}
	b = appendUint(b, 5, m.TimeoutMs)
	return b
}

func unmarshalRunProcess(b []byte) (*RunProcess, error) {
	m := &RunProcess{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Executable, b, err = consumeString(b)
		case 2:
			var s string
			s, b, err = consumeString(b)
			m.Arguments = append(m.Arguments, s)
		case 3:
			m.WorkingDirectory, b, err = consumeString(b)
		case 4:
			var raw []byte
			raw, b, err = consumeBytes(b)
			if err == nil {
				var env *EnvVar
				env, err = unmarshalEnvVar(raw)
				if err == nil {
					m.Env = append(m.Env, *env)
				}
			}
		case 5:
			m.TimeoutMs, b, err = consumeUint(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// RunProcessResponse carries the child's captured output.
type RunProcessResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int64
	Error    string
}

func (m *RunProcessResponse) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Stdout)
	b = appendString(b, 2, m.Stderr)
	b = appendInt(b, 3, m.ExitCode)
	b = appendString(b, 4, m.Error)
	return b
}

func unmarshalRunProcessResponse(b []byte) (*RunProcessResponse, error) {
	m := &RunProcessResponse{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Stdout, b, err = consumeString(b)
		case 2:
			m.Stderr, b, err = consumeString(b)
		case 3:
			m.ExitCode, b, err = consumeInt(b)
		case 4:
			m.Error, b, err = consumeString(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// InterceptAction binds a key chord to an identifier surfaced on match.
type InterceptAction struct {
	Identifier string
	Key        string
}

func (m *InterceptAction) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Identifier)
	b = appendString(b, 2, m.Key)
	return b
}

func unmarshalInterceptAction(b []byte) (*InterceptAction, error) {
	m := &InterceptAction{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Identifier, b, err = consumeString(b)
		case 2:
			m.Key, b, err = consumeString(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// SetIntercepts configures the agent's keystroke intercept table.
type SetIntercepts struct {
	InterceptBound    bool
	InterceptGlobally bool
	Actions           []InterceptAction
	Override          bool
}

func (m *SetIntercepts) marshal(b []byte) []byte {
	b = appendBool(b, 1, m.InterceptBound)
	b = appendBool(b, 2, m.InterceptGlobally)
	for i := range m.Actions {
		b = appendMessage(b, 3, &m.Actions[i])
	}
	b = appendBool(b, 4, m.Override)
	return b
}

func unmarshalSetIntercepts(b []byte) (*SetIntercepts, error) {
	m := &SetIntercepts{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.InterceptBound, b, err = consumeBool(b)
		case 2:
			m.InterceptGlobally, b, err = consumeBool(b)
		case 3:
			var raw []byte
			raw, b, err = consumeBytes(b)
			if err == nil {
				var a *InterceptAction
				a, err = unmarshalInterceptAction(raw)
				if err == nil {
					m.Actions = append(m.Actions, *a)
				}
			}
		case 4:
			m.Override, b, err = consumeBool(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// SetVisible toggles whether visible host UI exists; agents drop
// intercepts while invisible.
type SetVisible struct{ Visible bool }

func (m *SetVisible) marshal(b []byte) []byte { return appendBool(b, 1, m.Visible) }

func unmarshalSetVisible(b []byte) (*SetVisible, error) {
	m := &SetVisible{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		if num == 1 {
			m.Visible, b, err = consumeBool(b)
			return b, err
		}
		return skipField(b, num, typ)
	})
	return m, err
}

// InsertOnNewCmd queues text to insert once the next prompt draws.
type InsertOnNewCmd struct {
	Text      string
	Execute   bool
	Bracketed bool
}

func (m *InsertOnNewCmd) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Text)
	b = appendBool(b, 2, m.Execute)
	b = appendBool(b, 3, m.Bracketed)
	return b
}

func unmarshalInsertOnNewCmd(b []byte) (*InsertOnNewCmd, error) {
	m := &InsertOnNewCmd{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Text, b, err = consumeString(b)
		case 2:
			m.Execute, b, err = consumeBool(b)
		case 3:
			m.Bracketed, b, err = consumeBool(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// Diagnostics requests the agent's current shell context.
type Diagnostics struct{}

func (m *Diagnostics) marshal(b []byte) []byte { return b }

// DiagnosticsResponse reports the agent's shell context.
type DiagnosticsResponse struct {
	Shell  string
	Cwd    string
	Pid    int64
	Buffer string
	Cursor uint64
}

func (m *DiagnosticsResponse) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Shell)
	b = appendString(b, 2, m.Cwd)
	b = appendInt(b, 3, m.Pid)
	b = appendString(b, 4, m.Buffer)
	b = appendUint(b, 5, m.Cursor)
	return b
}

func unmarshalDiagnosticsResponse(b []byte) (*DiagnosticsResponse, error) {
	m := &DiagnosticsResponse{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Shell, b, err = consumeString(b)
		case 2:
			m.Cwd, b, err = consumeString(b)
		case 3:
			m.Pid, b, err = consumeInt(b)
		case 4:
			m.Buffer, b, err = consumeString(b)
		case 5:
			m.Cursor, b, err = consumeUint(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// NotifyChildSessionStarted fans out to linked sessions when a child
// shell handshakes with a parent_id.
type NotifyChildSessionStarted struct {
	ChildID  string
	ParentID string
}

func (m *NotifyChildSessionStarted) marshal(b []byte) []byte {
	b = appendString(b, 1, m.ChildID)
	b = appendString(b, 2, m.ParentID)
	return b
}

func unmarshalNotifyChild(b []byte) (*NotifyChildSessionStarted, error) {
	m := &NotifyChildSessionStarted{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.ChildID, b, err = consumeString(b)
		case 2:
			m.ParentID, b, err = consumeString(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// EditBuffer reports the user's current edit state; the host answers
// with an inline suggestion.
type EditBuffer struct {
	Text   string
	Cursor uint64
}

func (m *EditBuffer) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Text)
	b = appendUint(b, 2, m.Cursor)
	return b
}

func unmarshalEditBuffer(b []byte) (*EditBuffer, error) {
	m := &EditBuffer{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Text, b, err = consumeString(b)
		case 2:
			m.Cursor, b, err = consumeUint(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// InlineSuggestion is the host's answer to an EditBuffer request.
type InlineSuggestion struct{ Insertion string }

func (m *InlineSuggestion) marshal(b []byte) []byte { return appendString(b, 1, m.Insertion) }

func unmarshalInlineSuggestion(b []byte) (*InlineSuggestion, error) {
	m := &InlineSuggestion{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		if num == 1 {
			m.Insertion, b, err = consumeString(b)
			return b, err
		}
		return skipField(b, num, typ)
	})
	return m, err
}

// Prompt signals that the shell prompt redrew.
type Prompt struct{}

func (m *Prompt) marshal(b []byte) []byte { return b }

// PreExec signals that a command is about to run.
type PreExec struct{ Command string }

func (m *PreExec) marshal(b []byte) []byte { return appendString(b, 1, m.Command) }

func unmarshalPreExec(b []byte) (*PreExec, error) {
	m := &PreExec{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		if num == 1 {
			m.Command, b, err = consumeString(b)
			return b, err
		}
		return skipField(b, num, typ)
	})
	return m, err
}

// PostExec signals that a command finished.
type PostExec struct {
	Command  string
	ExitCode int64
}

func (m *PostExec) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Command)
	b = appendInt(b, 2, m.ExitCode)
	return b
}

func unmarshalPostExec(b []byte) (*PostExec, error) {
	m := &PostExec{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Command, b, err = consumeString(b)
		case 2:
			m.ExitCode, b, err = consumeInt(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}

// InterceptedKey surfaces a suppressed keystroke to the host.
type InterceptedKey struct {
	Context string
	Key     string
}

func (m *InterceptedKey) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Context)
	b = appendString(b, 2, m.Key)
	return b
}

func unmarshalInterceptedKey(b []byte) (*InterceptedKey, error) {
	m := &InterceptedKey{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			m.Context, b, err = consumeString(b)
		case 2:
			m.Key, b, err = consumeString(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return m, err
}
