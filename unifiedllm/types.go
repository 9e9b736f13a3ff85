package unifiedllm

import (
	"encoding/json"
	"strings"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentKind is the discriminator tag for ContentPart.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentRefusal    ContentKind = "refusal"
	ContentToolCall   ContentKind = "tool_call"
	ContentToolResult ContentKind = "tool_result"
)

// ToolCall is a model-initiated tool invocation. Arguments holds the raw,
// unvalidated JSON the model produced.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResultData holds the textual result of one tool call.
type ToolResultData struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// ContentPart is a tagged union representing one part of a message.
type ContentPart struct {
	Kind       ContentKind     `json:"kind"`
	Text       string          `json:"text,omitempty"`
	ToolCall   *ToolCall       `json:"tool_call,omitempty"`
	ToolResult *ToolResultData `json:"tool_result,omitempty"`
}

// TextPart creates a text ContentPart.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

// RefusalPart creates a refusal ContentPart.
func RefusalPart(text string) ContentPart {
	return ContentPart{Kind: ContentRefusal, Text: text}
}

// ToolCallPart creates a tool call ContentPart.
func ToolCallPart(call ToolCall) ContentPart {
	return ContentPart{Kind: ContentToolCall, ToolCall: &call}
}

// Message is the fundamental unit of conversation.
type Message struct {
	Role       Role          `json:"role"`
	Content    []ContentPart `json:"content"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// TextContent returns the concatenation of all text content parts.
func (m Message) TextContent() string {
	var sb strings.Builder
	for _, part := range m.Content {
		if part.Kind == ContentText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// Refusal returns the refusal text carried by the message, if any.
func (m Message) Refusal() (string, bool) {
	for _, part := range m.Content {
		if part.Kind == ContentRefusal {
			return part.Text, true
		}
	}
	return "", false
}

// ToolCalls extracts all tool calls from the message content.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, part := range m.Content {
		if part.Kind == ContentToolCall && part.ToolCall != nil {
			calls = append(calls, *part.ToolCall)
		}
	}
	return calls
}

// ToolResult returns the tool result carried by a tool message.
func (m Message) ToolResult() *ToolResultData {
	for _, part := range m.Content {
		if part.Kind == ContentToolResult && part.ToolResult != nil {
			return part.ToolResult
		}
	}
	return nil
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart(text)}}
}

// UserMessage creates a user Message with text content.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart(text)}}
}

// AssistantMessage creates an assistant Message with text content.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{TextPart(text)}}
}

// AssistantRefusalMessage creates an assistant Message recording a refusal.
func AssistantRefusalMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{RefusalPart(text)}}
}

// AssistantToolCallsMessage creates an assistant Message recording the tool
// calls the model requested. An empty list still yields a tool-call message.
func AssistantToolCallsMessage(calls []ToolCall) Message {
	parts := make([]ContentPart, 0, len(calls))
	for _, tc := range calls {
		parts = append(parts, ToolCallPart(tc))
	}
	return Message{Role: RoleAssistant, Content: parts}
}

// ToolResultMessage creates a tool result Message answering toolCallID.
func ToolResultMessage(toolCallID string, content string) Message {
	return Message{
		Role: RoleTool,
		Content: []ContentPart{{
			Kind:       ContentToolResult,
			ToolResult: &ToolResultData{ToolCallID: toolCallID, Content: content},
		}},
		ToolCallID: toolCallID,
	}
}

// Tool choice modes.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
	ToolChoiceNamed    = "named"
)

// ToolChoice controls whether and how the model uses tools.
type ToolChoice struct {
	Mode     string `json:"mode" yaml:"mode"`                               // "auto", "none", "required", "named"
	ToolName string `json:"tool_name,omitempty" yaml:"tool_name,omitempty"` // required when mode is "named"
}

// ToolDefinition is the advertised, serializable description of a tool.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
	Strict      bool           `json:"strict,omitempty"`
}

// FinishReason describes why generation stopped, normalized across
// providers. The zero value means the provider reported nothing.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
	FinishOther         FinishReason = "other"
)

// Choice is one candidate completion. Content and Refusal are nil when the
// provider did not send them, which is distinct from an empty string.
type Choice struct {
	Index        int          `json:"index"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Content      *string      `json:"content,omitempty"`
	Refusal      *string      `json:"refusal,omitempty"`
	ToolCalls    []ToolCall   `json:"tool_calls,omitempty"`
}

// Text returns the content text, or "" when absent.
func (c Choice) Text() string {
	if c.Content == nil {
		return ""
	}
	return *c.Content
}

// RefusalText returns the refusal text, or "" when absent.
func (c Choice) RefusalText() string {
	if c.Refusal == nil {
		return ""
	}
	return *c.Refusal
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns a new Usage that is the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// Request is the input to Complete.
type Request struct {
	Model           string            `json:"model"`
	Messages        []Message         `json:"messages"`
	Provider        string            `json:"provider,omitempty"`
	Tools           []ToolDefinition  `json:"tools,omitempty"`
	ToolChoice      *ToolChoice       `json:"tool_choice,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	PresencePenalty *float64          `json:"presence_penalty,omitempty"`
	MaxTokens       *int              `json:"max_tokens,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Response is the output of Complete.
type Response struct {
	ID       string   `json:"id"`
	Model    string   `json:"model"`
	Provider string   `json:"provider"`
	Choices  []Choice `json:"choices"`
	Usage    Usage    `json:"usage"`
}

// FirstChoice returns the first choice, reporting false when the provider
// returned none.
func (r Response) FirstChoice() (Choice, bool) {
	if len(r.Choices) == 0 {
		return Choice{}, false
	}
	return r.Choices[0], true
}

// String returns a pointer to s. Used for optional Choice fields.
func String(s string) *string { return &s }

// Float returns a pointer to f. Used for optional Request fields.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to n. Used for optional Request fields.
func Int(n int) *int { return &n }

// ToolResultPlaceholder answers a tool call whose result was delivered in a
// plain user message rather than a tool message.
const ToolResultPlaceholder = "The result of this call is in the next user message."

// FillToolResults returns messages with a placeholder tool result added for
// every tool call not answered by the tool messages directly following its
// assistant message. OpenAI and Anthropic both reject unanswered calls.
func FillToolResults(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for i := 0; i < len(messages); i++ {
		m := messages[i]
		out = append(out, m)
		calls := m.ToolCalls()
		if m.Role != RoleAssistant || len(calls) == 0 {
			continue
		}

		answered := make(map[string]bool, len(calls))
		j := i + 1
		for ; j < len(messages) && messages[j].Role == RoleTool; j++ {
			if r := messages[j].ToolResult(); r != nil {
				answered[r.ToolCallID] = true
			}
		}
		out = append(out, messages[i+1:j]...)
		for _, c := range calls {
			if !answered[c.ID] {
				out = append(out, ToolResultMessage(c.ID, ToolResultPlaceholder))
			}
		}
		i = j - 1
	}
	return out
}
