package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shellmind/cli/internal/fsshim"
)

// FsWrite creates or overwrites a file. With exist_check set, an existing
// target is refused rather than silently clobbered.
type FsWrite struct{}

type fsWriteInput struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	ExistCheck bool   `json:"exist_check,omitempty"`
}

func (*FsWrite) Name() string { return "fs_write" }

func (*FsWrite) Description() string {
	return "Create or overwrite a file with the given content. Set exist_check to refuse overwriting an existing file."
}

func (*FsWrite) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "minLength": 1, "description": "Absolute path of the file to write."},
    "content": {"type": "string", "description": "Full content to write."},
    "exist_check": {"type": "boolean", "description": "Fail instead of overwriting an existing file."}
  },
  "required": ["path", "content"]
}`)
}

func (t *FsWrite) Validate(input json.RawMessage) error {
	return ValidateInput(t, input)
}

func (*FsWrite) QueueDescription(input json.RawMessage, fsys fsshim.FS) string {
	var in fsWriteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "fs_write (unparseable arguments)"
	}
	verb := "Creating"
	if fsys.Exists(in.Path) {
		verb = "Overwriting"
	}
	return fmt.Sprintf("%s %s (%d bytes)", verb, in.Path, len(in.Content))
}

func (*FsWrite) Invoke(_ context.Context, input json.RawMessage, fsys fsshim.FS) (*Output, error) {
	var in fsWriteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return Errorf("fs_write: %v", err), nil
	}
	if in.ExistCheck && fsys.Exists(in.Path) {
		return Errorf("fs_write: %s already exists and exist_check is set", in.Path), nil
	}
	if err := fsys.Write(in.Path, []byte(in.Content), 0o644); err != nil {
		return Errorf("fs_write: %v", err), nil
	}
	return &Output{Text: fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path)}, nil
}
