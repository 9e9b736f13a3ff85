package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIAdapter implements ProviderAdapter on the OpenAI chat completions
// API. Any OpenAI-compatible endpoint (vLLM, Ollama, Groq, ...) works through
// a custom base URL.
type OpenAIAdapter struct {
	client openai.Client
}

// NewOpenAIAdapter creates an OpenAI-backed adapter. An empty baseURL keeps
// the SDK default. SDK-level retries are disabled; RetryPolicy owns them.
func NewOpenAIAdapter(apiKey string, baseURL string, opts ...option.RequestOption) *OpenAIAdapter {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAIAdapter{client: openai.NewClient(reqOpts...)}
}

// Name returns the provider identifier.
func (a *OpenAIAdapter) Name() string { return "openai" }

// SupportsToolChoice reports whether the adapter supports a tool choice mode.
func (a *OpenAIAdapter) SupportsToolChoice(mode string) bool {
	switch mode {
	case ToolChoiceAuto, ToolChoiceNone, ToolChoiceRequired, ToolChoiceNamed:
		return true
	default:
		return false
	}
}

// Complete sends a chat completion request.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
		if req.ToolChoice != nil {
			params.ToolChoice = toOpenAIToolChoice(*req.ToolChoice)
		}
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*req.PresencePenalty)
	}
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, a.translateError(err)
	}
	return fromOpenAIResponse(resp), nil
}

// toOpenAITools converts tool definitions to the OpenAI SDK representation.
func toOpenAITools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
				Strict:      openai.Bool(t.Strict),
			},
		}
	}
	return out
}

func toOpenAIToolChoice(tc ToolChoice) openai.ChatCompletionToolChoiceOptionUnionParam {
	if tc.Mode == ToolChoiceNamed {
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: tc.ToolName},
			},
		}
	}
	return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(tc.Mode)}
}

// toOpenAIMessages converts conversation messages to OpenAI SDK message unions.
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	messages = FillToolResults(messages)
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.TextContent()))
		case RoleUser:
			out = append(out, openai.UserMessage(m.TextContent()))
		case RoleTool:
			if result := m.ToolResult(); result != nil {
				out = append(out, openai.ToolMessage(result.Content, result.ToolCallID))
			}
		case RoleAssistant:
			out = append(out, toOpenAIAssistant(m))
		}
	}
	return out
}

func toOpenAIAssistant(m Message) openai.ChatCompletionMessageParamUnion {
	asst := openai.ChatCompletionAssistantMessageParam{}
	if text := m.TextContent(); text != "" {
		asst.Content.OfString = openai.String(text)
	}
	refusal, hasRefusal := m.Refusal()
	if hasRefusal {
		asst.Refusal = openai.String(refusal)
	}
	calls := m.ToolCalls()
	if len(calls) == 0 && !hasRefusal && m.TextContent() == "" {
		asst.Content.OfString = openai.String("")
	}
	if len(calls) > 0 {
		asst.ToolCalls = make([]openai.ChatCompletionMessageToolCallParam, len(calls))
		for i, tc := range calls {
			asst.ToolCalls[i] = openai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			}
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
}

// fromOpenAIResponse converts an OpenAI chat completion into a Response.
// Empty content and refusal strings are treated as absent, since the wire
// format sends null for both when the model produced nothing.
func fromOpenAIResponse(resp *openai.ChatCompletion) *Response {
	out := &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: "openai",
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
	for _, c := range resp.Choices {
		choice := Choice{
			Index:        int(c.Index),
			FinishReason: normalizeOpenAIFinish(string(c.FinishReason)),
		}
		// An explicit "" is still a message; only null or missing content
		// is absent. An empty refusal carries nothing to report.
		if c.Message.JSON.Content.Valid() || c.Message.Content != "" {
			choice.Content = String(c.Message.Content)
		}
		if c.Message.Refusal != "" {
			choice.Refusal = String(c.Message.Refusal)
		}
		for _, tc := range c.Message.ToolCalls {
			args := json.RawMessage(tc.Function.Arguments)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			choice.ToolCalls = append(choice.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: args,
			})
		}
		out.Choices = append(out.Choices, choice)
	}
	return out
}

func normalizeOpenAIFinish(reason string) FinishReason {
	switch reason {
	case "stop":
		return FinishStop
	case "length":
		return FinishLength
	case "tool_calls", "function_call":
		return FinishToolCalls
	case "content_filter":
		return FinishContentFilter
	case "":
		return ""
	default:
		return FinishOther
	}
}

func (a *OpenAIAdapter) translateError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return ErrorFromStatusCode(apiErr.StatusCode, msg, a.Name(), apiErr.Code, nil)
	}
	return ErrorFromTransport(a.Name(), err)
}
