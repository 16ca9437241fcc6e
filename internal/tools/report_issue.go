package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"runtime"

	"github.com/shellmind/cli/internal/fsshim"
)

// issueTrackerURL is where pre-filled reports land.
const issueTrackerURL = "https://github.com/shellmind/cli/issues/new"

// ReportIssue builds a pre-filled issue-reporter URL carrying the user's
// description plus basic environment details.
type ReportIssue struct{}

type reportIssueInput struct {
	Title          string `json:"title"`
	ExpectedBehav  string `json:"expected_behavior,omitempty"`
	ActualBehav    string `json:"actual_behavior,omitempty"`
	StepsToProduce string `json:"steps_to_reproduce,omitempty"`
}

func (*ReportIssue) Name() string { return "report_issue" }

func (*ReportIssue) Description() string {
	return "Open a pre-filled issue report for a bug or feature request raised during the conversation."
}

func (*ReportIssue) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string", "minLength": 1, "description": "One-line summary of the issue."},
    "expected_behavior": {"type": "string"},
    "actual_behavior": {"type": "string"},
    "steps_to_reproduce": {"type": "string"}
  },
  "required": ["title"]
}`)
}

func (t *ReportIssue) Validate(input json.RawMessage) error {
	return ValidateInput(t, input)
}

func (*ReportIssue) QueueDescription(input json.RawMessage, _ fsshim.FS) string {
	var in reportIssueInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "report_issue (unparseable arguments)"
	}
	return fmt.Sprintf("Filing issue: %s", in.Title)
}

func (*ReportIssue) Invoke(_ context.Context, input json.RawMessage, _ fsshim.FS) (*Output, error) {
	var in reportIssueInput
	if err := json.Unmarshal(input, &in); err != nil {
		return Errorf("report_issue: %v", err), nil
	}

	body := ""
	if in.ExpectedBehav != "" {
		body += "### Expected behavior\n" + in.ExpectedBehav + "\n\n"
	}
	if in.ActualBehav != "" {
		body += "### Actual behavior\n" + in.ActualBehav + "\n\n"
	}
	if in.StepsToProduce != "" {
		body += "### Steps to reproduce\n" + in.StepsToProduce + "\n\n"
	}
	body += fmt.Sprintf("### Environment\n- OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	q := url.Values{}
	q.Set("title", in.Title)
	q.Set("body", body)
	return &Output{Text: issueTrackerURL + "?" + q.Encode()}, nil
}
