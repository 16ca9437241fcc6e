// Package tools declares the built-in side-effectful tools the model can
// invoke (filesystem read/search/write, shell execution, cloud calls, the
// workspace knowledge store, issue reporting), validates their arguments,
// renders human-readable previews for the confirmation prompt, and
// executes them against a filesystem capability.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/shellmind/cli/internal/conversation"
	"github.com/shellmind/cli/internal/fsshim"
)

// Output is the structured result of one tool invocation: either plain
// text or a JSON document, with IsError marking a failed run whose text
// should go back to the model as an error-status tool result.
type Output struct {
	Text    string
	JSON    json.RawMessage
	IsError bool
}

// Errorf builds an error-status Output.
func Errorf(format string, args ...any) *Output {
	return &Output{Text: fmt.Sprintf(format, args...), IsError: true}
}

// Tool is one wire-named tool. Validate rejects malformed arguments
// before any side effect; QueueDescription renders the preview shown at
// the confirmation prompt; Invoke performs the call.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Validate(input json.RawMessage) error
	QueueDescription(input json.RawMessage, fsys fsshim.FS) string
	Invoke(ctx context.Context, input json.RawMessage, fsys fsshim.FS) (*Output, error)
}

var schemaCache sync.Map

func compileSchema(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// ValidateInput checks input against the tool's declared schema, so the
// enforced constraints are exactly the advertised ones. Tools layer only
// the conditional checks a flat schema cannot express on top of this.
func ValidateInput(tool Tool, input json.RawMessage) error {
	compiled, err := compileSchema(tool.InputSchema())
	if err != nil {
		return fmt.Errorf("compile %s schema: %w", tool.Name(), err)
	}
	var decoded any
	if err := json.Unmarshal(input, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return compiled.Validate(decoded)
}

// Parameter limits applied before dispatch.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20
)

// Registry holds the tools available to the current session, keyed by
// wire name, with thread-safe registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	fsys  fsshim.FS
}

// NewRegistry creates an empty registry whose tools run against fsys.
func NewRegistry(fsys fsshim.FS) *Registry {
	if fsys == nil {
		fsys = fsshim.NewOS()
	}
	return &Registry{tools: make(map[string]Tool), fsys: fsys}
}

// NewBuiltinRegistry returns a registry populated with every built-in
// tool, running against fsys.
func NewBuiltinRegistry(fsys fsshim.FS) *Registry {
	r := NewRegistry(fsys)
	r.Register(&FsRead{})
	r.Register(&FsWrite{})
	r.Register(&ExecuteBash{})
	r.Register(&UseAWS{})
	r.Register(NewKnowledge())
	r.Register(&ReportIssue{})
	return r
}

// Register adds a tool, replacing any existing tool of the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}

// Specs renders the registry as tool specs for the model request payload.
func (r *Registry) Specs() []conversation.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]conversation.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, conversation.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return specs
}

// Execute validates and runs a tool by name. Validation and lookup
// failures come back as error-status outputs, not Go errors, so the model
// can read the diagnostic and correct itself.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (*Output, error) {
	if len(name) > MaxToolNameLength {
		return Errorf("tool name exceeds maximum length of %d characters", MaxToolNameLength), nil
	}
	if len(input) > MaxToolParamsSize {
		return Errorf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize), nil
	}
	tool, ok := r.Get(name)
	if !ok {
		return Errorf("tool not found: %s", name), nil
	}
	if err := tool.Validate(input); err != nil {
		return Errorf("invalid arguments for %s: %v", name, err), nil
	}
	return tool.Invoke(ctx, input, r.fsys)
}

// Describe renders the confirmation preview for a pending invocation.
func (r *Registry) Describe(name string, input json.RawMessage) string {
	tool, ok := r.Get(name)
	if !ok {
		return "unknown tool: " + name
	}
	return tool.QueueDescription(input, r.fsys)
}
