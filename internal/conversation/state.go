package conversation

// State owns a bounded conversation history and enforces the invariants
// the model API requires on every request: the first message must be a
// plain user message carrying no tool results, and the last message must
// be an assistant message (never a dangling user turn). Tool-use/result
// pairing against the staged next message is handled by Conversation.
type State struct {
	History []Message
}

// New returns an empty conversation state.
func New() *State {
	return &State{}
}

// Append adds msg to history and re-applies FixHistory so the stored
// history is always in a state that is safe to send.
func (s *State) Append(msg Message) {
	s.History = append(s.History, msg)
	s.FixHistory()
}

// FixHistory enforces the history-shape invariants in place: truncate to
// at most effectiveMaxHistory messages, discarding from the front up to
// the first message that can legally start a request (a user message with
// no tool results, clearing entirely if none exists), then drop any
// trailing user messages so history always ends on an assistant turn.
func (s *State) FixHistory() {
	s.truncate()
	s.dropTrailingUser()
}

func (s *State) truncate() {
	if len(s.History) <= effectiveMaxHistory {
		return
	}
	overflow := len(s.History) - effectiveMaxHistory
	start := firstValidStart(s.History, overflow)
	if start < 0 {
		s.History = nil
		return
	}
	s.History = s.History[start:]
}

// firstValidStart finds the first index >= fromIdx of a message that can
// legally begin a request: a user message carrying no tool results. It
// returns -1 if none exists, meaning the whole history must be discarded.
func firstValidStart(history []Message, fromIdx int) int {
	for i := fromIdx; i < len(history); i++ {
		m := history[i]
		if m.Role == RoleUser && !m.HasToolResults() {
			return i
		}
	}
	return -1
}

func (s *State) dropTrailingUser() {
	for len(s.History) > 0 && s.History[len(s.History)-1].Role == RoleUser {
		s.History = s.History[:len(s.History)-1]
	}
}
