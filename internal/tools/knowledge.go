package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shellmind/cli/internal/fsshim"
)

// Knowledge maintains an in-memory store of indexed files, searched by
// case-insensitive substring match; there is no semantic index. add and
// update run as asynchronous jobs identified by operation ids;
// remove/search/show/status/cancel run immediately.
type Knowledge struct {
	mu      sync.RWMutex
	entries map[string]*knowledgeEntry
	jobs    map[string]*knowledgeJob
}

type knowledgeEntry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Content string    `json:"content"`
	Added   time.Time `json:"added"`
}

type knowledgeJobStatus string

const (
	jobRunning   knowledgeJobStatus = "running"
	jobDone      knowledgeJobStatus = "done"
	jobFailed    knowledgeJobStatus = "failed"
	jobCancelled knowledgeJobStatus = "cancelled"
)

type knowledgeJob struct {
	ID       string             `json:"operation_id"`
	Command  string             `json:"command"`
	Target   string             `json:"target"`
	Status   knowledgeJobStatus `json:"status"`
	Progress string             `json:"progress,omitempty"`
	Error    string             `json:"error,omitempty"`
	cancel   context.CancelFunc
}

type knowledgeInput struct {
	Command     string `json:"command"`
	Name        string `json:"name,omitempty"`
	Path        string `json:"path,omitempty"`
	Query       string `json:"query,omitempty"`
	OperationID string `json:"operation_id,omitempty"`
}

// NewKnowledge returns an empty knowledge store.
func NewKnowledge() *Knowledge {
	return &Knowledge{
		entries: make(map[string]*knowledgeEntry),
		jobs:    make(map[string]*knowledgeJob),
	}
}

func (*Knowledge) Name() string { return "knowledge" }

func (*Knowledge) Description() string {
	return "Maintain the workspace knowledge store: add, remove, or update indexed files, search the index, and inspect or cancel background indexing jobs."
}

func (*Knowledge) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "command": {"type": "string", "enum": ["add", "remove", "update", "search", "show", "status", "cancel"]},
    "name": {"type": "string", "description": "Entry name for add/remove/update."},
    "path": {"type": "string", "description": "File to index for add/update."},
    "query": {"type": "string", "description": "Search query."},
    "operation_id": {"type": "string", "description": "Job id for status/cancel."}
  },
  "required": ["command"]
}`)
}

func (k *Knowledge) Validate(input json.RawMessage) error {
	if err := ValidateInput(k, input); err != nil {
		return err
	}
	var in knowledgeInput
	if err := json.Unmarshal(input, &in); err != nil {
		return err
	}
	switch in.Command {
	case "add", "update":
		if in.Name == "" || in.Path == "" {
			return fmt.Errorf("%s requires name and path", in.Command)
		}
	case "remove":
		if in.Name == "" {
			return fmt.Errorf("remove requires name")
		}
	case "search":
		if in.Query == "" {
			return fmt.Errorf("search requires query")
		}
	case "cancel":
		if in.OperationID == "" {
			return fmt.Errorf("cancel requires operation_id")
		}
	case "show", "status":
	default:
		return fmt.Errorf("unknown command %q", in.Command)
	}
	return nil
}

func (*Knowledge) QueueDescription(input json.RawMessage, _ fsshim.FS) string {
	var in knowledgeInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "knowledge (unparseable arguments)"
	}
	switch in.Command {
	case "add", "update":
		return fmt.Sprintf("Knowledge store: %s %q from %s", in.Command, in.Name, in.Path)
	case "remove":
		return fmt.Sprintf("Knowledge store: remove %q", in.Name)
	case "search":
		return fmt.Sprintf("Knowledge store: search %q", in.Query)
	case "cancel":
		return fmt.Sprintf("Knowledge store: cancel job %s", in.OperationID)
	default:
		return "Knowledge store: " + in.Command
	}
}

func (k *Knowledge) Invoke(ctx context.Context, input json.RawMessage, fsys fsshim.FS) (*Output, error) {
	var in knowledgeInput
	if err := json.Unmarshal(input, &in); err != nil {
		return Errorf("knowledge: %v", err), nil
	}
	switch in.Command {
	case "add", "update":
		return k.startIndexJob(in, fsys), nil
	case "remove":
		return k.remove(in), nil
	case "search":
		return k.search(in), nil
	case "show":
		return k.show(), nil
	case "status":
		return k.status(in), nil
	case "cancel":
		return k.cancelJob(in), nil
	}
	return Errorf("knowledge: unknown command %q", in.Command), nil
}

// startIndexJob reads and indexes the file on a background goroutine,
// returning the operation id immediately.
func (k *Knowledge) startIndexJob(in knowledgeInput, fsys fsshim.FS) *Output {
	jobCtx, cancel := context.WithCancel(context.Background())
	job := &knowledgeJob{
		ID:       uuid.NewString(),
		Command:  in.Command,
		Target:   in.Name,
		Status:   jobRunning,
		Progress: "reading " + in.Path,
		cancel:   cancel,
	}
	k.mu.Lock()
	k.jobs[job.ID] = job
	k.mu.Unlock()

	go func() {
		defer cancel()
		data, err := fsys.Read(in.Path)
		k.mu.Lock()
		defer k.mu.Unlock()
		if jobCtx.Err() != nil {
			job.Status = jobCancelled
			return
		}
		if err != nil {
			job.Status = jobFailed
			job.Error = err.Error()
			return
		}
		k.entries[in.Name] = &knowledgeEntry{
			Name:    in.Name,
			Path:    in.Path,
			Content: string(data),
			Added:   time.Now(),
		}
		job.Status = jobDone
		job.Progress = "indexed"
	}()

	raw, _ := json.Marshal(map[string]string{"operation_id": job.ID, "status": string(jobRunning)})
	return &Output{JSON: raw}
}

func (k *Knowledge) remove(in knowledgeInput) *Output {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.entries[in.Name]; !ok {
		return Errorf("knowledge: no entry named %q", in.Name)
	}
	delete(k.entries, in.Name)
	return &Output{Text: fmt.Sprintf("removed %q from the knowledge store", in.Name)}
}

func (k *Knowledge) search(in knowledgeInput) *Output {
	k.mu.RLock()
	defer k.mu.RUnlock()
	needle := strings.ToLower(in.Query)
	var hits []string
	for _, e := range k.entries {
		if strings.Contains(strings.ToLower(e.Content), needle) || strings.Contains(strings.ToLower(e.Name), needle) {
			hits = append(hits, fmt.Sprintf("%s (%s)", e.Name, e.Path))
		}
	}
	sort.Strings(hits)
	if len(hits) == 0 {
		return &Output{Text: fmt.Sprintf("no knowledge entries match %q", in.Query)}
	}
	return &Output{Text: fmt.Sprintf("%d entr(y/ies) match %q:\n%s", len(hits), in.Query, strings.Join(hits, "\n"))}
}

func (k *Knowledge) show() *Output {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if len(k.entries) == 0 {
		return &Output{Text: "the knowledge store is empty"}
	}
	names := make([]string, 0, len(k.entries))
	for n := range k.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		e := k.entries[n]
		fmt.Fprintf(&b, "%s\t%s\t%d bytes\n", e.Name, e.Path, len(e.Content))
	}
	return &Output{Text: strings.TrimRight(b.String(), "\n")}
}

func (k *Knowledge) status(in knowledgeInput) *Output {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if in.OperationID != "" {
		job, ok := k.jobs[in.OperationID]
		if !ok {
			return Errorf("knowledge: no job %s", in.OperationID)
		}
		raw, _ := json.Marshal(job)
		return &Output{JSON: raw}
	}
	jobs := make([]*knowledgeJob, 0, len(k.jobs))
	for _, j := range k.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	raw, _ := json.Marshal(jobs)
	return &Output{JSON: raw}
}

func (k *Knowledge) cancelJob(in knowledgeInput) *Output {
	k.mu.Lock()
	defer k.mu.Unlock()
	job, ok := k.jobs[in.OperationID]
	if !ok {
		return Errorf("knowledge: no job %s", in.OperationID)
	}
	if job.Status == jobRunning {
		job.cancel()
		job.Status = jobCancelled
	}
	return &Output{Text: fmt.Sprintf("job %s is %s", job.ID, job.Status)}
}
