package agentloop

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/martinemde/agenty/unifiedllm"
)

// ErrUnexpectedResponseShape is wrapped by UnsupportedChoiceError.
var ErrUnexpectedResponseShape = errors.New("unexpected response shape")

// ErrStepLimit is returned when a loop exceeds AgentConfig.MaxSteps.
var ErrStepLimit = errors.New("step limit reached")

// IncorrectToolCallError reports tool arguments that failed to parse or
// validate against the capability's schema.
type IncorrectToolCallError struct {
	Tool   string
	Schema map[string]any
	Args   string
	Cause  error
}

func (e *IncorrectToolCallError) Error() string {
	return fmt.Sprintf("incorrect tool call to %s: %v (args: %s)", e.Tool, e.Cause, e.Args)
}

func (e *IncorrectToolCallError) Unwrap() error {
	return e.Cause
}

// NoSuchToolError reports a tool call naming an unregistered capability.
type NoSuchToolError struct {
	Name string
}

func (e *NoSuchToolError) Error() string {
	return fmt.Sprintf("no such tool: %s", e.Name)
}

// UnexpectedResponseError carries the text of a response that RunUntilTool
// did not expect: a free-text answer or a refusal.
type UnexpectedResponseError struct {
	Text string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected llm response: %s", e.Text)
}

// UnsupportedChoiceError is returned when a choice carries no recognizable
// signal: no tool calls, refusal or content, and no known finish reason.
type UnsupportedChoiceError struct {
	Choice unifiedllm.Choice
}

func (e *UnsupportedChoiceError) Error() string {
	return fmt.Sprintf("not supported choice: finish_reason=%q", e.Choice.FinishReason)
}

func (e *UnsupportedChoiceError) Unwrap() error {
	return ErrUnexpectedResponseShape
}

// IsRecoverable reports whether err can be handed back to the model as a
// conversational message instead of aborting the loop.
func IsRecoverable(err error) bool {
	var noSuch *NoSuchToolError
	var incorrect *IncorrectToolCallError
	return errors.As(err, &noSuch) || errors.As(err, &incorrect)
}

// recoveryMessage builds the user message that explains a recoverable error
// to the model.
func recoveryMessage(err error, available []string) string {
	var noSuch *NoSuchToolError
	if errors.As(err, &noSuch) {
		return fmt.Sprintf("There is no tool named %q. Available tools: %v. Call one of the available tools.",
			noSuch.Name, available)
	}
	var incorrect *IncorrectToolCallError
	if errors.As(err, &incorrect) {
		schema, _ := json.Marshal(incorrect.Schema)
		return fmt.Sprintf("The arguments to tool %q were rejected: %v. Arguments must match this JSON schema: %s. Fix the arguments and call the tool again.",
			incorrect.Tool, incorrect.Cause, schema)
	}
	return err.Error()
}
