package agentloop

import (
	"testing"

	"github.com/martinemde/agenty/unifiedllm"
)

func callsHistory(names ...string) []unifiedllm.Message {
	var history []unifiedllm.Message
	for i, name := range names {
		history = append(history,
			unifiedllm.AssistantToolCallsMessage([]unifiedllm.ToolCall{toolCall(string(rune('a'+i)), name, `{}`)}),
			unifiedllm.UserMessage("result"))
	}
	return history
}

func TestDetectLoop(t *testing.T) {
	tests := []struct {
		name   string
		calls  []string
		window int
		want   bool
	}{
		{"same call repeated", []string{"a", "a", "a", "a"}, 4, true},
		{"alternating pair", []string{"a", "b", "a", "b"}, 4, true},
		{"triple pattern", []string{"a", "b", "c", "a", "b", "c"}, 6, true},
		{"no pattern", []string{"a", "b", "c", "d"}, 4, false},
		{"not enough calls", []string{"a", "a"}, 4, false},
		{"disabled window", []string{"a", "a", "a"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLoop(callsHistory(tt.calls...), tt.window); got != tt.want {
				t.Errorf("DetectLoop() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectLoopConsidersArguments(t *testing.T) {
	history := []unifiedllm.Message{
		unifiedllm.AssistantToolCallsMessage([]unifiedllm.ToolCall{toolCall("1", "read", `{"p":1}`)}),
		unifiedllm.AssistantToolCallsMessage([]unifiedllm.ToolCall{toolCall("2", "read", `{"p":2}`)}),
		unifiedllm.AssistantToolCallsMessage([]unifiedllm.ToolCall{toolCall("3", "read", `{"p":3}`)}),
	}
	if DetectLoop(history, 3) {
		t.Error("calls with different arguments are not a loop")
	}
}
