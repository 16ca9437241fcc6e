package chatengine

import (
	"fmt"
	"strings"
)

// Command is a parsed REPL input line.
type Command struct {
	// Kind is the command name without the slash, or "" for a plain chat
	// message held in Text.
	Kind string
	// Args are the whitespace-split arguments after the command word.
	Args []string
	// Text is the raw chat message when Kind is "".
	Text string
}

// bareCommandWords are inputs that look like commands but lack the
// slash; they are rejected with a hint instead of being sent to the
// model, since the user almost certainly did not mean to chat them.
var bareCommandWords = map[string]string{
	"exit":  "/quit",
	"quit":  "/quit",
	"q":     "/quit",
	"clear": "/clear",
	"cls":   "/clear",
	"help":  "/help",
	"?":     "/help",
}

// ErrBareCommand is produced for bare command words; its text carries
// the "did you mean" hint.
type ErrBareCommand struct {
	Word string
	Hint string
}

func (e *ErrBareCommand) Error() string {
	return fmt.Sprintf("%q is not sent to the assistant; did you mean %s?", e.Word, e.Hint)
}

// knownCommands is the slash-command grammar. The value lists legal
// subcommands; nil means free-form arguments.
var knownCommands = map[string][]string{
	"clear":     nil,
	"help":      nil,
	"quit":      nil,
	"exit":      nil,
	"compact":   nil,
	"editor":    nil,
	"issue":     nil,
	"profile":   {"list", "create", "delete", "set", "rename", "help"},
	"context":   {"show", "add", "rm", "clear", "help"},
	"tools":     {"trust", "untrust", "trustall", "reset", "help"},
	"acceptall": nil, // deprecated alias for /tools trustall
}

// ParseInput classifies one input line.
func ParseInput(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Command{}, nil
	}

	if !strings.HasPrefix(trimmed, "/") {
		if hint, ok := bareCommandWords[strings.ToLower(trimmed)]; ok {
			return Command{}, &ErrBareCommand{Word: trimmed, Hint: hint}
		}
		return Command{Text: trimmed}, nil
	}

	fields := strings.Fields(strings.TrimPrefix(trimmed, "/"))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	kind := strings.ToLower(fields[0])
	subs, ok := knownCommands[kind]
	if !ok {
		return Command{}, fmt.Errorf("unknown command /%s; see /help", kind)
	}
	args := fields[1:]
	if subs != nil {
		if len(args) == 0 {
			return Command{}, fmt.Errorf("/%s requires one of: %s", kind, strings.Join(subs, ", "))
		}
		sub := strings.ToLower(args[0])
		legal := false
		for _, s := range subs {
			if s == sub {
				legal = true
				break
			}
		}
		if !legal {
			return Command{}, fmt.Errorf("unknown subcommand /%s %s; expected one of: %s", kind, args[0], strings.Join(subs, ", "))
		}
	}

	// /acceptall is kept as a compatibility alias.
	if kind == "acceptall" {
		return Command{Kind: "tools", Args: []string{"trustall"}}, nil
	}
	return Command{Kind: kind, Args: args}, nil
}

const helpText = `Commands:
  /clear                       Clear the conversation history
  /compact [--summary] [text]  Summarize the history into a fresh context
  /editor [seed]               Compose the next message in $EDITOR
  /issue [text]                File an issue about this session
  /profile list|create|delete|set|rename
  /context show|add|rm|clear   Manage injected context files
  /tools trust|untrust|trustall|reset
  /help                        This message
  /quit                        Leave the session`
