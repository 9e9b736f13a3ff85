package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicAdapter implements ProviderAdapter on the Anthropic Messages API.
type AnthropicAdapter struct {
	client anthropic.Client
}

// NewAnthropicAdapter creates an Anthropic-backed adapter. SDK-level retries
// are disabled; RetryPolicy owns them.
func NewAnthropicAdapter(apiKey string, baseURL string, opts ...option.RequestOption) *AnthropicAdapter {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &AnthropicAdapter{client: anthropic.NewClient(reqOpts...)}
}

// Name returns the provider identifier.
func (a *AnthropicAdapter) Name() string { return "anthropic" }

// SupportsToolChoice reports whether the adapter supports a tool choice mode.
func (a *AnthropicAdapter) SupportsToolChoice(mode string) bool {
	switch mode {
	case ToolChoiceAuto, ToolChoiceNone, ToolChoiceRequired, ToolChoiceNamed:
		return true
	default:
		return false
	}
}

// Complete sends a Messages API request.
func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	system, messages := toAnthropicMessages(req.Messages)

	maxTokens := int64(anthropicDefaultMaxTokens)
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	// "none" is expressed by not advertising tools at all.
	if len(req.Tools) > 0 && (req.ToolChoice == nil || req.ToolChoice.Mode != ToolChoiceNone) {
		params.Tools = toAnthropicTools(req.Tools)
		if req.ToolChoice != nil {
			params.ToolChoice = toAnthropicToolChoice(*req.ToolChoice)
		}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.translateError(err)
	}
	return fromAnthropicMessage(resp), nil
}

// toAnthropicTools converts tool definitions to Anthropic tool params.
func toAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		props, _ := t.Parameters["properties"].(map[string]any)
		if props == nil {
			props = map[string]any{}
		}
		var required []string
		switch req := t.Parameters["required"].(type) {
		case []string:
			required = req
		case []any:
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}

		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		}
	}
	return out
}

func toAnthropicToolChoice(tc ToolChoice) anthropic.ToolChoiceUnionParam {
	switch tc.Mode {
	case ToolChoiceRequired:
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case ToolChoiceNamed:
		return anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: tc.ToolName}}
	default:
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
}

// toAnthropicMessages splits out the system prompt and converts the rest.
// Anthropic has no tool role: tool results travel as user messages, and a
// recorded refusal is replayed as assistant text.
func toAnthropicMessages(messages []Message) (string, []anthropic.MessageParam) {
	messages = FillToolResults(messages)
	var system []string
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.TextContent())
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.TextContent())))
		case RoleTool:
			if result := m.ToolResult(); result != nil {
				block := anthropic.NewToolResultBlock(result.ToolCallID)
				block.OfToolResult.Content = []anthropic.ToolResultBlockParamContentUnion{
					{OfText: &anthropic.TextBlockParam{Text: result.Content}},
				}
				out = append(out, anthropic.NewUserMessage(block))
			}
		case RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0)
			if text := m.TextContent(); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			if refusal, ok := m.Refusal(); ok && refusal != "" {
				blocks = append(blocks, anthropic.NewTextBlock(refusal))
			}
			for _, tc := range m.ToolCalls() {
				input := tc.Arguments
				if len(input) == 0 || !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: input,
					},
				})
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	return strings.Join(system, "\n"), out
}

// fromAnthropicMessage converts an Anthropic response into a single-choice
// Response. A "refusal" stop reason surfaces the text as the refusal.
func fromAnthropicMessage(resp *anthropic.Message) *Response {
	choice := Choice{FinishReason: normalizeAnthropicStop(string(resp.StopReason))}

	var text strings.Builder
	hasText := false
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if hasText {
				text.WriteString("\n")
			}
			text.WriteString(block.AsText().Text)
			hasText = true
		case "tool_use":
			tu := block.AsToolUse()
			choice.ToolCalls = append(choice.ToolCalls, ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: json.RawMessage(tu.Input),
			})
		}
	}
	if hasText {
		if choice.FinishReason == FinishContentFilter {
			choice.Refusal = String(text.String())
		} else {
			choice.Content = String(text.String())
		}
	}

	return &Response{
		ID:       resp.ID,
		Model:    string(resp.Model),
		Provider: "anthropic",
		Choices:  []Choice{choice},
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

func normalizeAnthropicStop(reason string) FinishReason {
	switch reason {
	case "end_turn", "stop_sequence", "pause_turn":
		return FinishStop
	case "max_tokens":
		return FinishLength
	case "tool_use":
		return FinishToolCalls
	case "refusal":
		return FinishContentFilter
	case "":
		return ""
	default:
		return FinishOther
	}
}

func (a *AnthropicAdapter) translateError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return ErrorFromStatusCode(apiErr.StatusCode, apiErr.Error(), a.Name(), "", nil)
	}
	return ErrorFromTransport(a.Name(), err)
}
