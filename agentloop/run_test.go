package agentloop

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/martinemde/agenty/unifiedllm"
)

func TestRunUntilToolRoundTrip(t *testing.T) {
	invoked := false
	echo := NewCapability("echo", "echo a message", func(_ context.Context, args EchoArgs) (string, error) {
		invoked = true
		return args.Msg, nil
	})
	a := newTestAgent(script(toolCallsResponse(toolCall("c1", "echo", `{"msg":"hi"}`))), NewRegistry(echo))

	got, err := RunUntilTool[EchoArgs](context.Background(), a, "echo", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Msg != "hi" {
		t.Errorf("expected msg %q, got %q", "hi", got.Msg)
	}
	if invoked {
		t.Error("the target capability must not be invoked")
	}
}

func TestRunUntilToolRecoversFromUnknownTool(t *testing.T) {
	invoked := false
	echo := NewCapability("echo", "echo a message", func(_ context.Context, args EchoArgs) (string, error) {
		invoked = true
		return args.Msg, nil
	})
	c := script(
		toolCallsResponse(toolCall("c1", "bogus", `{}`)),
		toolCallsResponse(toolCall("c2", "echo", `{"msg":"hi"}`)),
	)
	a := newTestAgent(c, NewRegistry(echo))

	got, err := RunUntilTool[EchoArgs](context.Background(), a, "echo", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Msg != "hi" || invoked {
		t.Errorf("got %+v, invoked=%v", got, invoked)
	}

	history := a.Conversation().History()
	if len(history) != 3 {
		t.Fatalf("expected 3 history messages, got %d", len(history))
	}
	if history[1].Role != unifiedllm.RoleUser || !strings.Contains(history[1].TextContent(), `no tool named "bogus"`) {
		t.Errorf("expected recovery message, got %+v", history[1])
	}
	if len(c.requests) != 2 {
		t.Errorf("expected 2 requests, got %d", len(c.requests))
	}
	events := drainEvents(a)
	if !hasEvent(events, EventToolCallRetry) {
		t.Error("expected a tool call retry event")
	}
}

func TestRunUntilToolSkipsOtherCallsInBatch(t *testing.T) {
	var n int
	c := script(toolCallsResponse(
		toolCall("c1", "count", `{}`),
		toolCall("c2", "answer", `{"answer":"yes"}`),
	))
	a := newTestAgent(c, NewRegistry(counter("count", "", &n)))

	got, err := RunUntilTool[AnswerArgs](context.Background(), a, "answer", nil)
	if err != nil || got.Answer != "yes" {
		t.Fatalf("RunUntilTool = (%+v, %v)", got, err)
	}
	if n != 0 {
		t.Errorf("expected sibling calls not to run, ran %d", n)
	}
}

func TestRunUntilToolUnexpectedText(t *testing.T) {
	tests := []struct {
		name string
		resp *unifiedllm.Response
		text string
	}{
		{"refusal", refusalResponse("policy violation"), "policy violation"},
		{"message", textResponse("I'd rather chat"), "I'd rather chat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(script(tt.resp), nil)
			_, err := RunUntilTool[EchoArgs](context.Background(), a, "echo", nil)
			var unexpected *UnexpectedResponseError
			if !errors.As(err, &unexpected) {
				t.Fatalf("expected UnexpectedResponseError, got %v", err)
			}
			if unexpected.Text != tt.text {
				t.Errorf("expected text %q, got %q", tt.text, unexpected.Text)
			}
		})
	}
}

func TestRunUntilToolTargetDecodeFailureIsFatal(t *testing.T) {
	c := script(
		toolCallsResponse(toolCall("c1", "answer", `{"answer":5}`)),
		textResponse("never requested"),
	)
	a := newTestAgent(c, nil)

	_, err := RunUntilTool[AnswerArgs](context.Background(), a, "answer", nil)
	var incorrect *IncorrectToolCallError
	if !errors.As(err, &incorrect) {
		t.Fatalf("expected IncorrectToolCallError, got %v", err)
	}
	if incorrect.Tool != "answer" || incorrect.Schema == nil {
		t.Errorf("unexpected error fields: %+v", incorrect)
	}
	if len(c.requests) != 1 {
		t.Errorf("expected 1 request, got %d", len(c.requests))
	}
}

func TestRunUntilCapability(t *testing.T) {
	answer := NewCapability[AnswerArgs]("answer", "Give the final answer", nil)
	c := script(toolCallsResponse(toolCall("c1", "answer", `{"answer":"yes"}`)))
	a := newTestAgent(c, nil)

	got, err := RunUntilCapability(context.Background(), a, answer, nil)
	if err != nil || got.Answer != "yes" {
		t.Fatalf("RunUntilCapability = (%+v, %v)", got, err)
	}
	if _, ok := a.Registry().Get("answer"); ok {
		t.Error("the target must not stay in the registry")
	}
	if len(c.requests[0].Tools) != 1 || c.requests[0].Tools[0].Name != "answer" {
		t.Errorf("expected the target advertised, got %v", c.requests[0].Tools)
	}
}

func TestRunUntilCapabilityLeavesSharedRegistryAlone(t *testing.T) {
	var n int
	shared := NewRegistry(counter("count", "1", &n))
	answer := NewCapability[AnswerArgs]("answer", "Give the final answer", nil)

	c1 := script(
		toolCallsResponse(toolCall("c1", "count", `{}`)),
		toolCallsResponse(toolCall("c2", "answer", `{"answer":"done"}`)),
	)
	first := newTestAgent(c1, shared)
	got, err := RunUntilCapability(context.Background(), first, answer, nil)
	if err != nil || got.Answer != "done" {
		t.Fatalf("RunUntilCapability = (%+v, %v)", got, err)
	}
	for i, req := range c1.requests {
		if len(req.Tools) != 2 || req.Tools[0].Name != "answer" || req.Tools[1].Name != "count" {
			t.Errorf("request %d: expected answer and count advertised, got %v", i, req.Tools)
		}
	}

	c2 := script(textResponse("ok"))
	second := newTestAgent(c2, shared)
	if _, err := RunUntilText(context.Background(), second, nil); err != nil {
		t.Fatal(err)
	}
	if len(c2.requests[0].Tools) != 1 || c2.requests[0].Tools[0].Name != "count" {
		t.Errorf("a sibling agent must not see the target, got %v", c2.requests[0].Tools)
	}

	// The first agent's later loops no longer advertise it either.
	c1.responses = append(c1.responses, textResponse("bye"))
	if _, err := RunUntilText(context.Background(), first, nil); err != nil {
		t.Fatal(err)
	}
	if tools := c1.requests[len(c1.requests)-1].Tools; len(tools) != 1 || tools[0].Name != "count" {
		t.Errorf("expected the target gone after the call, got %v", tools)
	}
}

func TestRunUntilCapabilityValidatesTarget(t *testing.T) {
	answer := NewCapability[AnswerArgs]("answer", "Give the final answer", nil)
	a := newTestAgent(script(toolCallsResponse(toolCall("c1", "answer", `{"answer":""}`))), nil)

	_, err := RunUntilCapability(context.Background(), a, answer, nil)
	var incorrect *IncorrectToolCallError
	if !errors.As(err, &incorrect) {
		t.Fatalf("expected IncorrectToolCallError, got %v", err)
	}
}

func TestRunUntilTextReturnsContent(t *testing.T) {
	a := newTestAgent(script(textResponse("42")), nil)
	got, err := RunUntilText(context.Background(), a, nil)
	if err != nil || got != "42" {
		t.Fatalf("RunUntilText = (%q, %v)", got, err)
	}
}

func TestRunUntilTextReturnsRefusal(t *testing.T) {
	a := newTestAgent(script(refusalResponse("policy violation")), nil)
	got, err := RunUntilText(context.Background(), a, nil)
	if err != nil || got != "policy violation" {
		t.Fatalf("RunUntilText = (%q, %v)", got, err)
	}
}

func TestRunUntilTextResolvesToolCalls(t *testing.T) {
	var first, second int
	reg := NewRegistry(counter("first", "result-1", &first), counter("second", "result-2", &second))
	c := script(
		toolCallsResponse(toolCall("c1", "first", `{}`), toolCall("c2", "second", `{}`)),
		textResponse("done"),
	)
	a := newTestAgent(c, reg)

	got, err := RunUntilText(context.Background(), a, nil)
	if err != nil || got != "done" {
		t.Fatalf("RunUntilText = (%q, %v)", got, err)
	}
	if first != 1 || second != 1 {
		t.Errorf("expected each tool to run once, got %d and %d", first, second)
	}
	history := a.Conversation().History()
	if len(history) != 3 || history[1].TextContent() != "result-1\nresult-2" {
		t.Errorf("expected joined results as user message, got %+v", history)
	}
	if a.Usage().TotalTokens != 30 {
		t.Errorf("expected usage summed over steps, got %+v", a.Usage())
	}

	events := drainEvents(a)
	if events[0].Kind != EventSessionStart {
		t.Errorf("expected session start first, got %s", events[0].Kind)
	}
	for _, kind := range []EventKind{EventToolCallStart, EventToolCallEnd, EventUserInput, EventAssistantMessage, EventSessionEnd} {
		if !hasEvent(events, kind) {
			t.Errorf("expected %s event", kind)
		}
	}
}

func TestRunUntilTextShortCircuitsOnUnknownTool(t *testing.T) {
	var before, after int
	reg := NewRegistry(counter("before", "ok", &before), counter("after", "ok", &after))
	c := script(
		toolCallsResponse(
			toolCall("c1", "before", `{}`),
			toolCall("c2", "missing", `{}`),
			toolCall("c3", "after", `{}`),
		),
		textResponse("done"),
	)
	a := newTestAgent(c, reg)

	if _, err := RunUntilText(context.Background(), a, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before != 1 || after != 0 {
		t.Errorf("expected resolution to stop at the unknown tool, got before=%d after=%d", before, after)
	}
	msg := a.Conversation().History()[1].TextContent()
	if !strings.Contains(msg, `"missing"`) || !strings.Contains(msg, "after before") {
		t.Errorf("unexpected recovery message: %q", msg)
	}
}

func TestRunUntilTextRecoversFromIncorrectArguments(t *testing.T) {
	echo := NewCapability("echo", "echo", func(_ context.Context, args EchoArgs) (string, error) {
		return args.Msg, nil
	})
	c := script(
		toolCallsResponse(toolCall("c1", "echo", `{"msg":3}`)),
		toolCallsResponse(toolCall("c2", "echo", `{"msg":"fixed"}`)),
		textResponse("done"),
	)
	a := newTestAgent(c, NewRegistry(echo))

	if _, err := RunUntilText(context.Background(), a, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	history := a.Conversation().History()
	if len(history) != 5 {
		t.Fatalf("expected 5 history messages, got %d", len(history))
	}
	if !strings.Contains(history[1].TextContent(), "were rejected") {
		t.Errorf("expected rejection message, got %q", history[1].TextContent())
	}
	if history[3].TextContent() != "fixed" {
		t.Errorf("expected tool result, got %q", history[3].TextContent())
	}
}

func TestRunUntilTextAbortsOnToolFailure(t *testing.T) {
	errDisk := errors.New("disk on fire")
	broken := NewCapability("broken", "always fails", func(context.Context, EchoArgs) (string, error) {
		return "", errDisk
	})
	c := script(toolCallsResponse(toolCall("c1", "broken", `{}`)), textResponse("never"))
	a := newTestAgent(c, NewRegistry(broken))

	_, err := RunUntilText(context.Background(), a, nil)
	if !errors.Is(err, errDisk) {
		t.Fatalf("expected tool error, got %v", err)
	}
	if len(c.requests) != 1 {
		t.Errorf("expected 1 request, got %d", len(c.requests))
	}
}

func TestRunLoopStepLimit(t *testing.T) {
	var n int
	c := script(
		toolCallsResponse(toolCall("c1", "count", `{}`)),
		toolCallsResponse(toolCall("c2", "count", `{}`)),
		textResponse("never"),
	)
	cfg := testConfig()
	cfg.MaxSteps = 2
	a := NewAgent(c, NewRegistry(counter("count", "", &n)), "loop", cfg)

	_, err := RunUntilText(context.Background(), a, nil)
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("expected ErrStepLimit, got %v", err)
	}
	if len(c.requests) != 2 {
		t.Errorf("expected 2 requests, got %d", len(c.requests))
	}
	if !hasEvent(drainEvents(a), EventStepLimit) {
		t.Error("expected a step limit event")
	}
}

func TestRunLoopCancelled(t *testing.T) {
	c := script(textResponse("never"))
	a := newTestAgent(c, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunUntilText(ctx, a, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(c.requests) != 0 {
		t.Errorf("expected no requests, got %d", len(c.requests))
	}
}

func TestRunLoopDetectsRepeatedCalls(t *testing.T) {
	var n int
	c := script(
		toolCallsResponse(toolCall("c1", "count", `{"x":1}`)),
		toolCallsResponse(toolCall("c2", "count", `{"x":1}`)),
		toolCallsResponse(toolCall("c3", "count", `{"x":1}`)),
		textResponse("done"),
	)
	cfg := testConfig()
	cfg.LoopDetectionWindow = 3
	a := NewAgent(c, NewRegistry(counter("count", "same", &n)), "loop", cfg)

	got, err := RunUntilText(context.Background(), a, nil)
	if err != nil || got != "done" {
		t.Fatalf("RunUntilText = (%q, %v)", got, err)
	}
	if a.Conversation().Len() != 7 {
		t.Errorf("loop detection must not change the conversation, got %d messages", a.Conversation().Len())
	}
	if !hasEvent(drainEvents(a), EventLoopDetected) {
		t.Error("expected a loop detected event")
	}
}

func TestRunTruncatesToolOutput(t *testing.T) {
	var n int
	long := strings.Repeat("x", 500)
	cfg := testConfig()
	cfg.ToolOutputLimits = map[string]int{"big": 100}
	c := script(toolCallsResponse(toolCall("c1", "big", `{}`)), textResponse("done"))
	a := NewAgent(c, NewRegistry(counter("big", long, &n)), "go", cfg)

	if _, err := RunUntilText(context.Background(), a, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := a.Conversation().History()[1].TextContent()
	if len(result) >= len(long) || !strings.Contains(result, "WARNING") {
		t.Errorf("expected truncated output, got %d chars", len(result))
	}

	var full string
	for _, ev := range drainEvents(a) {
		if ev.Kind == EventToolCallEnd {
			full, _ = ev.Data["output"].(string)
		}
	}
	if full != long {
		t.Errorf("expected the full output in the event stream, got %d chars", len(full))
	}
}

func TestAgentRevertLast(t *testing.T) {
	a := newTestAgent(script(textResponse("hi")), nil)
	if _, err := RunUntilText(context.Background(), a, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a.AppendUser("follow-up")
	a.RevertLast()
	history := a.Conversation().History()
	if len(history) != 1 || history[0].TextContent() != "hi" {
		t.Errorf("unexpected history after revert: %+v", history)
	}
}

func TestNewAgentDefaults(t *testing.T) {
	a := NewAgent(script(), nil, "hello", nil)
	if a.Conversation().System() != DefaultSystemPrompt {
		t.Errorf("expected default system prompt, got %q", a.Conversation().System())
	}
	if a.Registry() == nil || a.Registry().Len() != 0 {
		t.Error("expected an empty registry")
	}
	if a.ID() == "" {
		t.Error("expected a session id")
	}
	if s := a.effectiveSettings(nil); s.Temperature != 0.7 || s.MaxTokens != 4096 || s.Timeout == 0 {
		t.Errorf("unexpected default settings: %+v", s)
	}
}
