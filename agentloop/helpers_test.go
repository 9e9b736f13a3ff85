package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/martinemde/agenty/unifiedllm"
)

// scriptedCompleter returns its responses in order and records every request.
type scriptedCompleter struct {
	responses []*unifiedllm.Response
	errs      []error
	requests  []unifiedllm.Request
}

func (s *scriptedCompleter) Complete(ctx context.Context, req unifiedllm.Request) (*unifiedllm.Response, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return nil, errors.New("script exhausted")
	}
	return s.responses[i], nil
}

func script(responses ...*unifiedllm.Response) *scriptedCompleter {
	return &scriptedCompleter{responses: responses}
}

func toolCall(id, name, args string) unifiedllm.ToolCall {
	return unifiedllm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func toolCallsResponse(calls ...unifiedllm.ToolCall) *unifiedllm.Response {
	return &unifiedllm.Response{
		Choices: []unifiedllm.Choice{{FinishReason: unifiedllm.FinishToolCalls, ToolCalls: calls}},
		Usage:   unifiedllm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func textResponse(text string) *unifiedllm.Response {
	return &unifiedllm.Response{
		Choices: []unifiedllm.Choice{{FinishReason: unifiedllm.FinishStop, Content: unifiedllm.String(text)}},
		Usage:   unifiedllm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func refusalResponse(text string) *unifiedllm.Response {
	return &unifiedllm.Response{
		Choices: []unifiedllm.Choice{{FinishReason: unifiedllm.FinishContentFilter, Refusal: unifiedllm.String(text)}},
	}
}

func testConfig() *AgentConfig {
	cfg := DefaultAgentConfig()
	settings := DefaultSettings()
	settings.Retry = unifiedllm.NoRetry()
	settings.Timeout = 0
	cfg.Settings = &settings
	cfg.Model = "test-model"
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return &cfg
}

func newTestAgent(c Completer, reg *Registry) *Agent {
	return NewAgent(c, reg, "do the task", testConfig())
}

// drainEvents closes the agent and returns every event it emitted.
func drainEvents(a *Agent) []SessionEvent {
	a.Close()
	var events []SessionEvent
	for ev := range a.Events() {
		events = append(events, ev)
	}
	return events
}

func hasEvent(events []SessionEvent, kind EventKind) bool {
	for _, ev := range events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

type EchoArgs struct {
	Msg string `json:"msg"`
}

type AnswerArgs struct {
	Answer string `json:"answer" jsonschema:"description=The final answer" validate:"required"`
}

// counter is a capability that counts its invocations and returns result.
func counter(name, result string, calls *int) *TypedCapability[map[string]any] {
	return NewCapability(name, "counts calls", func(context.Context, map[string]any) (string, error) {
		*calls++
		return result, nil
	})
}

func lastMessage(t *testing.T, a *Agent) unifiedllm.Message {
	t.Helper()
	history := a.Conversation().History()
	if len(history) == 0 {
		t.Fatal("conversation history is empty")
	}
	return history[len(history)-1]
}
