package agentloop

import (
	"context"
	"fmt"

	"github.com/martinemde/agenty/unifiedllm"
)

// ToolCallsFunc handles a response that requested tool calls.
type ToolCallsFunc[T any] func(ctx context.Context, a *Agent, calls []unifiedllm.ToolCall) (Action[T], error)

// TextFunc handles a response that carried a message or a refusal.
type TextFunc[T any] func(ctx context.Context, a *Agent, text string) (Action[T], error)

// Step is one request/response round trip. Exactly one continuation runs per
// step, chosen by Classify, after the assistant message has been appended to
// the conversation.
type Step[T any] struct {
	OnToolCalls ToolCallsFunc[T]
	OnMessage   TextFunc[T]
	OnRefusal   TextFunc[T]
}

// Run sends the conversation to the model and dispatches the first choice of
// the response. settings overrides the agent default when non-nil. Request
// errors are returned without invoking any continuation.
func (s Step[T]) Run(ctx context.Context, a *Agent, settings *Settings) (Action[T], error) {
	var none Action[T]
	eff := a.effectiveSettings(settings)
	req := a.buildRequest(eff)

	resp, err := unifiedllm.Retry(ctx, eff.Retry, func(ctx context.Context) (*unifiedllm.Response, error) {
		if eff.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, eff.Timeout)
			defer cancel()
		}
		return a.client.Complete(ctx, req)
	})
	if err != nil {
		a.emitter.Emit(EventError, map[string]any{"error": err.Error()})
		return none, err
	}
	if resp == nil {
		resp = &unifiedllm.Response{}
	}
	a.usage = a.usage.Add(resp.Usage)

	choice, ok := resp.FirstChoice()
	if !ok {
		return none, &UnsupportedChoiceError{}
	}

	branch := Classify(choice)
	a.logger.Debug("classified response",
		"branch", branch.String(),
		"finish_reason", string(choice.FinishReason),
		"tool_calls", len(choice.ToolCalls))
	a.emitter.Emit(EventStep, map[string]any{
		"branch":        branch.String(),
		"finish_reason": string(choice.FinishReason),
	})

	switch branch {
	case BranchToolCalls:
		a.conv.AppendMessage(unifiedllm.AssistantToolCallsMessage(choice.ToolCalls))
		a.checkLoop()
		if s.OnToolCalls == nil {
			return none, fmt.Errorf("agentloop: step has no %s continuation", branch)
		}
		return s.OnToolCalls(ctx, a, choice.ToolCalls)

	case BranchRefusal:
		text := choice.RefusalText()
		a.conv.AppendMessage(unifiedllm.AssistantRefusalMessage(text))
		a.emitter.Emit(EventAssistantMessage, map[string]any{"refusal": text})
		if s.OnRefusal == nil {
			return none, fmt.Errorf("agentloop: step has no %s continuation", branch)
		}
		return s.OnRefusal(ctx, a, text)

	case BranchMessage:
		text := choice.Text()
		a.conv.AppendMessage(unifiedllm.AssistantMessage(text))
		a.emitter.Emit(EventAssistantMessage, map[string]any{"text": text})
		if s.OnMessage == nil {
			return none, fmt.Errorf("agentloop: step has no %s continuation", branch)
		}
		return s.OnMessage(ctx, a, text)

	default:
		return none, &UnsupportedChoiceError{Choice: choice}
	}
}

// checkLoop warns when recent tool calls repeat. The conversation is left
// as it is.
func (a *Agent) checkLoop() {
	if !a.config.EnableLoopDetection {
		return
	}
	window := a.config.LoopDetectionWindow
	if DetectLoop(a.conv.history, window) {
		a.logger.Warn("tool call loop detected", "window", window)
		a.emitter.Emit(EventLoopDetected, map[string]any{"window": window})
	}
}
