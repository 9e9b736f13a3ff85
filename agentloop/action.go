package agentloop

import "fmt"

// ActionKind identifies the outcome of one step.
type ActionKind int

const (
	// ActionContinue asks the loop to run another step.
	ActionContinue ActionKind = iota
	// ActionUnexpected ends the loop with text the mode did not expect.
	ActionUnexpected
	// ActionOut ends the loop successfully with a value.
	ActionOut
)

func (k ActionKind) String() string {
	switch k {
	case ActionContinue:
		return "continue"
	case ActionUnexpected:
		return "unexpected"
	case ActionOut:
		return "out"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is the outcome of one step. Text is set for ActionUnexpected and
// Value for ActionOut.
type Action[T any] struct {
	Kind  ActionKind
	Text  string
	Value T
}

// Continue returns an action that keeps the loop going.
func Continue[T any]() Action[T] {
	return Action[T]{Kind: ActionContinue}
}

// Unexpected returns a terminal action carrying text.
func Unexpected[T any](text string) Action[T] {
	return Action[T]{Kind: ActionUnexpected, Text: text}
}

// Out returns a terminal action carrying v.
func Out[T any](v T) Action[T] {
	return Action[T]{Kind: ActionOut, Value: v}
}
