// Package chatengine drives the interactive REPL: it reads input lines,
// intercepts slash commands, materializes conversation requests, streams
// model output through the markdown renderer, and walks model-requested
// tool calls through confirmation and execution.
package chatengine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/shellmind/cli/internal/contextmgr"
	"github.com/shellmind/cli/internal/conversation"
	"github.com/shellmind/cli/internal/llmclient"
	"github.com/shellmind/cli/internal/mdrender"
	"github.com/shellmind/cli/internal/tools"
)

// maxToolRounds bounds how many times a single user turn may bounce
// between the model and the tool executor.
const maxToolRounds = 50

// Options wires an Engine.
type Options struct {
	Client        llmclient.Client
	Registry      *tools.Registry
	Permissions   *tools.Permissions
	ContextMgr    *contextmgr.Manager
	Input         io.Reader
	Output        io.Writer
	TerminalWidth int
	Logger        *slog.Logger
	History       *HistoryStore
}

// Engine is the REPL. All conversation mutation happens on the goroutine
// that calls Run.
type Engine struct {
	conv    *conversation.Conversation
	client  llmclient.Client
	reg     *tools.Registry
	perms   *tools.Permissions
	ctxMgr  *contextmgr.Manager
	in      *bufio.Reader
	out     io.Writer
	width   int
	logger  *slog.Logger
	history *HistoryStore
}

// New builds an Engine.
func New(opts Options) *Engine {
	if opts.Permissions == nil {
		opts.Permissions = tools.NewPermissions()
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.TerminalWidth <= 0 {
		opts.TerminalWidth = 80
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		conv:    conversation.NewConversation(),
		client:  opts.Client,
		reg:     opts.Registry,
		perms:   opts.Permissions,
		ctxMgr:  opts.ContextMgr,
		in:      bufio.NewReader(opts.Input),
		out:     opts.Output,
		width:   opts.TerminalWidth,
		logger:  opts.Logger,
		history: opts.History,
	}
	if e.reg != nil {
		e.conv.SetTools(e.reg.Specs())
	}
	return e
}

// Conversation exposes the engine's conversation for tests and for the
// one-shot translate path.
func (e *Engine) Conversation() *conversation.Conversation { return e.conv }

// Run executes the REPL until /quit or EOF. An initial prompt, when
// non-empty, is processed as the first input line.
func (e *Engine) Run(ctx context.Context, initialPrompt string) error {
	if initialPrompt != "" {
		if quit, err := e.handleLine(ctx, initialPrompt); quit || err != nil {
			return err
		}
	}
	for {
		fmt.Fprint(e.out, "> ")
		line, err := e.in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if strings.TrimSpace(line) != "" {
					_, herr := e.handleLine(ctx, line)
					return herr
				}
				return nil
			}
			return err
		}
		quit, err := e.handleLine(ctx, line)
		if quit {
			return nil
		}
		if err != nil {
			e.printError(err)
		}
	}
}

// handleLine dispatches one input line. The bool result requests exit.
func (e *Engine) handleLine(ctx context.Context, line string) (bool, error) {
	cmd, err := ParseInput(line)
	if err != nil {
		return false, err
	}

	switch cmd.Kind {
	case "":
		if cmd.Text == "" {
			return false, nil
		}
		if e.history != nil {
			_ = e.history.Append(ctx, cmd.Text)
		}
		return false, e.chatTurn(ctx, cmd.Text)
	case "quit", "exit":
		return true, nil
	case "clear":
		e.conv.Clear()
		fmt.Fprintln(e.out, "Conversation cleared.")
		return false, nil
	case "help":
		fmt.Fprintln(e.out, helpText)
		return false, nil
	case "compact":
		return false, e.compact(ctx, cmd.Args)
	case "editor":
		return false, e.composeInEditor(ctx, strings.Join(cmd.Args, " "))
	case "issue":
		return false, e.fileIssue(ctx, strings.Join(cmd.Args, " "))
	case "tools":
		return false, e.handleTools(cmd.Args)
	case "context":
		return false, e.handleContext(cmd.Args)
	case "profile":
		return false, e.handleProfile(cmd.Args)
	}
	return false, fmt.Errorf("unhandled command /%s", cmd.Kind)
}

// chatTurn runs one user message through the model, looping through tool
// rounds until the model answers without tool uses.
func (e *Engine) chatTurn(ctx context.Context, text string) error {
	e.conv.AppendUserMessage(text)
	for round := 0; round < maxToolRounds; round++ {
		calls, err := e.streamOnce(ctx)
		if err != nil {
			return err
		}
		if len(calls) == 0 {
			return nil
		}
		results, abandoned := e.confirmAndRun(ctx, calls)
		if abandoned != nil {
			e.conv.AbandonToolUse(abandoned, conversation.CancelledToolResultText)
		} else {
			e.conv.AddToolResults(results)
		}
	}
	return fmt.Errorf("chatengine: tool round limit reached")
}

// streamOnce sends the staged message and renders the streamed reply,
// returning any accumulated tool calls.
func (e *Engine) streamOnce(ctx context.Context) ([]PendingToolCall, error) {
	var files []conversation.ContextFile
	if e.ctxMgr != nil {
		var err error
		if files, err = e.ctxMgr.ContextFiles(true); err != nil {
			e.logger.Warn("context file resolution failed", "error", err)
		}
	}

	req, err := e.conv.AsSendable(files)
	if err != nil {
		return nil, err
	}
	chunks, err := e.client.SendMessage(ctx, req)
	if err != nil {
		return nil, err
	}

	renderer := mdrender.New(e.out, e.width)
	var acc toolCallAccumulator
	var content strings.Builder
	messageID := ""

	for chunk := range chunks {
		switch {
		case chunk.Err != nil:
			// The partial message is aborted; nothing is pushed so the
			// staged user turn can be retried cleanly.
			renderer.Close()
			return nil, chunk.Err
		case chunk.MessageID != "":
			messageID = chunk.MessageID
		case chunk.Text != "":
			content.WriteString(chunk.Text)
			if _, err := renderer.Write([]byte(chunk.Text)); err != nil {
				return nil, err
			}
		default:
			acc.feed(chunk)
		}
	}
	if err := renderer.Close(); err != nil {
		return nil, err
	}
	fmt.Fprintln(e.out)

	calls := acc.finish()
	e.conv.PushAssistantMessage(conversation.Message{
		ID:       messageID,
		Content:  content.String(),
		ToolUses: toolUses(calls),
	})
	return calls, nil
}

// confirmAndRun walks pending calls through permission gating and
// execution. If the user rejects one, the ids of every not-yet-answered
// call come back in abandoned and nothing further runs.
func (e *Engine) confirmAndRun(ctx context.Context, calls []PendingToolCall) (results []conversation.ToolResult, abandoned []string) {
	for i, call := range calls {
		if e.perms.RequiresConfirmation(call.Name) {
			fmt.Fprintln(e.out, e.reg.Describe(call.Name, call.Input))
			answer := e.askConfirmation()
			switch answer {
			case confirmTrust:
				e.perms.Trust(call.Name)
			case confirmYes:
			default:
				for _, rest := range calls[i:] {
					abandoned = append(abandoned, rest.ID)
				}
				return nil, abandoned
			}
		}
		results = append(results, e.runTool(ctx, call))
	}
	return results, nil
}

type confirmAnswer int

const (
	confirmNo confirmAnswer = iota
	confirmYes
	confirmTrust
)

// askConfirmation reads one y/n/t answer; EOF and junk count as no.
func (e *Engine) askConfirmation() confirmAnswer {
	fmt.Fprint(e.out, "Run this tool? [y/n/t] ")
	line, err := e.in.ReadString('\n')
	if err != nil && line == "" {
		return confirmNo
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return confirmYes
	case "t", "trust":
		return confirmTrust
	}
	return confirmNo
}

func (e *Engine) runTool(ctx context.Context, call PendingToolCall) conversation.ToolResult {
	out, err := e.reg.Execute(ctx, call.Name, call.Input)
	if err != nil {
		e.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		return conversation.ToolResult{
			ToolUseID: call.ID,
			Content:   fmt.Sprintf("%v: %v", ErrToolExecution, err),
			IsError:   true,
		}
	}
	content := out.Text
	if content == "" && len(out.JSON) > 0 {
		content = string(out.JSON)
	}
	return conversation.ToolResult{ToolUseID: call.ID, Content: content, IsError: out.IsError}
}

func (e *Engine) printError(err error) {
	var bare *ErrBareCommand
	if errors.As(err, &bare) {
		fmt.Fprintln(e.out, err.Error())
		return
	}
	fmt.Fprintf(e.out, "error: %v\n", err)
	if hint := RecoveryHint(err); hint != "" {
		fmt.Fprintln(e.out, hint)
	}
}

// composeInEditor opens $EDITOR on a seeded temp file and sends the
// saved content as the next message.
func (e *Engine) composeInEditor(ctx context.Context, seed string) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set")
	}
	f, err := os.CreateTemp("", "shellmind-*.md")
	if err != nil {
		return err
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.WriteString(seed); err != nil {
		f.Close()
		return err
	}
	f.Close()

	cmd := exec.CommandContext(ctx, editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor failed: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		fmt.Fprintln(e.out, "Empty message, nothing sent.")
		return nil
	}
	return e.chatTurn(ctx, text)
}

// fileIssue runs the report_issue tool directly, outside the model loop.
func (e *Engine) fileIssue(ctx context.Context, text string) error {
	if text == "" {
		text = "Issue reported from chat session " + e.conv.ConversationID()
	}
	input, err := json.Marshal(map[string]string{"title": text})
	if err != nil {
		return err
	}
	out, err := e.reg.Execute(ctx, "report_issue", input)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, out.Text)
	return nil
}

func (e *Engine) handleTools(args []string) error {
	switch args[0] {
	case "trust", "untrust":
		if len(args) < 2 {
			return fmt.Errorf("/tools %s requires a tool name", args[0])
		}
		if _, ok := e.reg.Get(args[1]); !ok {
			return fmt.Errorf("unknown tool %q", args[1])
		}
		if args[0] == "trust" {
			e.perms.Trust(args[1])
			fmt.Fprintf(e.out, "%s is trusted for this session.\n", args[1])
		} else {
			e.perms.Untrust(args[1])
			fmt.Fprintf(e.out, "%s now asks before every run.\n", args[1])
		}
	case "trustall":
		e.perms.TrustAll(e.reg.Names())
		fmt.Fprintln(e.out, "All tools are trusted for this session.")
	case "reset":
		e.perms.Reset()
		fmt.Fprintln(e.out, "Tool permissions restored to defaults.")
	case "help":
		fmt.Fprintln(e.out, "/tools trust <name> | untrust <name> | trustall | reset")
	}
	return nil
}

func (e *Engine) handleContext(args []string) error {
	if e.ctxMgr == nil {
		return fmt.Errorf("context management is not configured")
	}
	global := false
	rest := args[1:]
	if len(rest) > 0 && rest[0] == "--global" {
		global = true
		rest = rest[1:]
	}
	switch args[0] {
	case "show":
		fmt.Fprintln(e.out, "Global paths:")
		for _, p := range e.ctxMgr.Global().Paths {
			fmt.Fprintf(e.out, "  %s\n", p)
		}
		fmt.Fprintf(e.out, "Profile %q paths:\n", e.ctxMgr.Active().Name)
		for _, p := range e.ctxMgr.Active().Paths {
			fmt.Fprintf(e.out, "  %s\n", p)
		}
	case "add":
		if len(rest) == 0 {
			return fmt.Errorf("/context add requires at least one path")
		}
		return e.ctxMgr.AddPaths(global, rest...)
	case "rm":
		if len(rest) == 0 {
			return fmt.Errorf("/context rm requires at least one path")
		}
		return e.ctxMgr.RemovePaths(global, rest...)
	case "clear":
		return e.ctxMgr.ClearPaths(global)
	case "help":
		fmt.Fprintln(e.out, "/context show | add [--global] <path...> | rm [--global] <path...> | clear [--global]")
	}
	return nil
}

func (e *Engine) handleProfile(args []string) error {
	if e.ctxMgr == nil {
		return fmt.Errorf("profiles are not configured")
	}
	switch args[0] {
	case "list":
		names, err := e.ctxMgr.ListProfiles()
		if err != nil {
			return err
		}
		active := e.ctxMgr.Active().Name
		for _, n := range names {
			marker := " "
			if n == active {
				marker = "*"
			}
			fmt.Fprintf(e.out, "%s %s\n", marker, n)
		}
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("/profile create requires a name")
		}
		return e.ctxMgr.CreateProfile(args[1])
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("/profile delete requires a name")
		}
		return e.ctxMgr.DeleteProfile(args[1])
	case "set":
		if len(args) < 2 {
			return fmt.Errorf("/profile set requires a name")
		}
		if err := e.ctxMgr.SetActive(args[1]); err != nil {
			return err
		}
		e.conv.SetProfile(args[1])
		fmt.Fprintf(e.out, "Active profile is now %q.\n", args[1])
	case "rename":
		if len(args) < 3 {
			return fmt.Errorf("/profile rename requires old and new names")
		}
		return e.ctxMgr.RenameProfile(args[1], args[2])
	case "help":
		fmt.Fprintln(e.out, "/profile list | create <name> | delete <name> | set <name> | rename <old> <new>")
	}
	return nil
}
