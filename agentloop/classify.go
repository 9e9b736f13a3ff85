package agentloop

import "github.com/martinemde/agenty/unifiedllm"

// Branch is the classification of a response choice.
type Branch int

const (
	BranchNone Branch = iota
	BranchToolCalls
	BranchRefusal
	BranchMessage
)

func (b Branch) String() string {
	switch b {
	case BranchToolCalls:
		return "tool_calls"
	case BranchRefusal:
		return "refusal"
	case BranchMessage:
		return "message"
	default:
		return "none"
	}
}

// Classify decides which continuation handles choice. Checks run in order
// and the first match wins: tool calls, then refusal, then message.
func Classify(choice unifiedllm.Choice) Branch {
	switch {
	case choice.FinishReason == unifiedllm.FinishToolCalls || len(choice.ToolCalls) > 0:
		return BranchToolCalls
	case choice.FinishReason == unifiedllm.FinishContentFilter || choice.Refusal != nil:
		return BranchRefusal
	case choice.FinishReason == unifiedllm.FinishStop ||
		choice.FinishReason == unifiedllm.FinishLength ||
		choice.Content != nil:
		return BranchMessage
	default:
		return BranchNone
	}
}
