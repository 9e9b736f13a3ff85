package agentloop

import "github.com/martinemde/agenty/unifiedllm"

// Conversation is the context sent to the model: a fixed system prompt, a
// fixed initial user message, and the history accumulated since. Messages
// are never modified after they are appended.
type Conversation struct {
	system  string
	user    string
	history []unifiedllm.Message
}

// NewConversation creates a conversation with an empty history.
func NewConversation(system, user string) *Conversation {
	return &Conversation{system: system, user: user}
}

// System returns the system prompt.
func (c *Conversation) System() string { return c.system }

// User returns the initial user message.
func (c *Conversation) User() string { return c.user }

// AppendUser appends a user message to the history.
func (c *Conversation) AppendUser(text string) {
	c.history = append(c.history, unifiedllm.UserMessage(text))
}

// AppendMessage appends msg to the history.
func (c *Conversation) AppendMessage(msg unifiedllm.Message) {
	c.history = append(c.history, msg)
}

// RevertLast removes the most recent history message. It is a no-op on an
// empty history and never touches the system or user preamble.
func (c *Conversation) RevertLast() {
	if len(c.history) == 0 {
		return
	}
	c.history[len(c.history)-1] = unifiedllm.Message{}
	c.history = c.history[:len(c.history)-1]
}

// FullContext returns the system message, the user message and the history,
// in that order. The returned slice is a fresh copy.
func (c *Conversation) FullContext() []unifiedllm.Message {
	out := make([]unifiedllm.Message, 0, len(c.history)+2)
	out = append(out, unifiedllm.SystemMessage(c.system), unifiedllm.UserMessage(c.user))
	return append(out, c.history...)
}

// History returns a copy of the accumulated history.
func (c *Conversation) History() []unifiedllm.Message {
	out := make([]unifiedllm.Message, len(c.history))
	copy(out, c.history)
	return out
}

// Len returns the number of history messages.
func (c *Conversation) Len() int { return len(c.history) }
