package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/shellmind/cli/internal/fsshim"
)

// FsRead reads a file slice by line range, lists a directory tree, or
// substring-searches a file with surrounding context.
type FsRead struct{}

const (
	fsReadModeLine      = "Line"
	fsReadModeDirectory = "Directory"
	fsReadModeSearch    = "Search"
)

const defaultSearchContextLines = 2

type fsReadInput struct {
	Mode         string `json:"mode"`
	Path         string `json:"path"`
	StartLine    *int   `json:"start_line,omitempty"`
	EndLine      *int   `json:"end_line,omitempty"`
	Depth        *int   `json:"depth,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	ContextLines *int   `json:"context_lines,omitempty"`
}

func (*FsRead) Name() string { return "fs_read" }

func (*FsRead) Description() string {
	return "Read a file by line range, list a directory, or search a file for a substring with surrounding context."
}

func (*FsRead) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "mode": {"type": "string", "enum": ["Line", "Directory", "Search"]},
    "path": {"type": "string", "minLength": 1, "description": "Absolute path to the file or directory."},
    "start_line": {"type": "integer", "description": "1-based inclusive start line; negative counts from the end."},
    "end_line": {"type": "integer", "description": "1-based inclusive end line; negative counts from the end."},
    "depth": {"type": "integer", "description": "Directory listing depth."},
    "pattern": {"type": "string", "description": "Substring to search for (case-insensitive)."},
    "context_lines": {"type": "integer", "description": "Lines of context around each match."}
  },
  "required": ["mode", "path"]
}`)
}

func (t *FsRead) Validate(input json.RawMessage) error {
	if err := ValidateInput(t, input); err != nil {
		return err
	}
	var in fsReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return err
	}
	if in.Mode == fsReadModeSearch && in.Pattern == "" {
		return fmt.Errorf("pattern is required in Search mode")
	}
	return nil
}

func (*FsRead) QueueDescription(input json.RawMessage, _ fsshim.FS) string {
	var in fsReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "fs_read (unparseable arguments)"
	}
	switch in.Mode {
	case fsReadModeDirectory:
		return fmt.Sprintf("Listing directory: %s", in.Path)
	case fsReadModeSearch:
		return fmt.Sprintf("Searching %s for %q", in.Path, in.Pattern)
	default:
		if in.StartLine != nil || in.EndLine != nil {
			return fmt.Sprintf("Reading %s (lines %s..%s)", in.Path, optInt(in.StartLine, "start"), optInt(in.EndLine, "end"))
		}
		return fmt.Sprintf("Reading file: %s", in.Path)
	}
}

func optInt(v *int, fallback string) string {
	if v == nil {
		return fallback
	}
	return fmt.Sprintf("%d", *v)
}

func (t *FsRead) Invoke(_ context.Context, input json.RawMessage, fsys fsshim.FS) (*Output, error) {
	var in fsReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return Errorf("fs_read: %v", err), nil
	}
	switch in.Mode {
	case fsReadModeDirectory:
		return t.listDirectory(fsys, in)
	case fsReadModeSearch:
		return t.search(fsys, in)
	default:
		return t.readLines(fsys, in)
	}
}

func (*FsRead) readLines(fsys fsshim.FS, in fsReadInput) (*Output, error) {
	data, err := fsys.Read(in.Path)
	if err != nil {
		return Errorf("fs_read: %v", err), nil
	}
	lines := strings.Split(string(data), "\n")

	start, end := 1, len(lines)
	if in.StartLine != nil {
		start = resolveLine(*in.StartLine, len(lines))
	}
	if in.EndLine != nil {
		end = resolveLine(*in.EndLine, len(lines))
	}
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return Errorf("fs_read: empty line range %d..%d for %s (%d lines)", start, end, in.Path, len(lines)), nil
	}
	return &Output{Text: strings.Join(lines[start-1:end], "\n")}, nil
}

// resolveLine maps a 1-based, possibly negative, line number onto the
// file: -1 is the last line, -2 the one before it.
func resolveLine(n, total int) int {
	if n < 0 {
		return total + n + 1
	}
	return n
}

func (t *FsRead) listDirectory(fsys fsshim.FS, in fsReadInput) (*Output, error) {
	depth := 1
	if in.Depth != nil && *in.Depth > 0 {
		depth = *in.Depth
	}
	var b strings.Builder
	if err := t.walk(fsys, in.Path, depth, &b); err != nil {
		return Errorf("fs_read: %v", err), nil
	}
	return &Output{Text: strings.TrimRight(b.String(), "\n")}, nil
}

func (t *FsRead) walk(fsys fsshim.FS, dir string, depth int, b *strings.Builder) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		fmt.Fprintf(b, "%s\n", formatEntry(e, full))
		if e.IsDir() && depth > 1 {
			if err := t.walk(fsys, full, depth-1, b); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatEntry(e fs.DirEntry, full string) string {
	info, err := e.Info()
	if err != nil {
		return full
	}
	return fmt.Sprintf("%s %8d %s %s", info.Mode(), info.Size(), info.ModTime().Format("Jan _2 15:04"), full)
}

func (*FsRead) search(fsys fsshim.FS, in fsReadInput) (*Output, error) {
	data, err := fsys.Read(in.Path)
	if err != nil {
		return Errorf("fs_read: %v", err), nil
	}
	contextLines := defaultSearchContextLines
	if in.ContextLines != nil && *in.ContextLines >= 0 {
		contextLines = *in.ContextLines
	}

	lines := strings.Split(string(data), "\n")
	needle := strings.ToLower(in.Pattern)
	var b strings.Builder
	matches := 0
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), needle) {
			continue
		}
		matches++
		lo := i - contextLines
		if lo < 0 {
			lo = 0
		}
		hi := i + contextLines
		if hi > len(lines)-1 {
			hi = len(lines) - 1
		}
		for j := lo; j <= hi; j++ {
			marker := "  "
			if j == i {
				marker = "→ "
			}
			fmt.Fprintf(&b, "%s%d: %s\n", marker, j+1, lines[j])
		}
		b.WriteString("\n")
	}
	if matches == 0 {
		return &Output{Text: fmt.Sprintf("no matches for %q in %s", in.Pattern, in.Path)}, nil
	}
	return &Output{Text: fmt.Sprintf("%d match(es) for %q in %s:\n\n%s", matches, in.Pattern, in.Path, strings.TrimRight(b.String(), "\n"))}, nil
}
