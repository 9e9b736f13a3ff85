package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/martinemde/agenty/unifiedllm"
)

// RunLoop runs step until it returns an action other than Continue. It stops
// with ErrStepLimit after AgentConfig.MaxSteps steps, and with ctx.Err()
// when ctx is done between steps.
func RunLoop[T any](ctx context.Context, a *Agent, step Step[T], settings *Settings) (Action[T], error) {
	for steps := 0; ; steps++ {
		if err := ctx.Err(); err != nil {
			return Action[T]{}, err
		}
		if a.config.MaxSteps > 0 && steps >= a.config.MaxSteps {
			a.emitter.Emit(EventStepLimit, map[string]any{"max_steps": a.config.MaxSteps})
			return Action[T]{}, fmt.Errorf("%w after %d steps", ErrStepLimit, steps)
		}

		action, err := step.Run(ctx, a, settings)
		if err != nil {
			return action, err
		}
		a.logger.Debug("agent action", "action", action.Kind.String())
		if action.Kind != ActionContinue {
			return action, nil
		}
	}
}

// RunUntilTool loops until the model calls target and returns that call's
// arguments decoded into A. The target capability is never invoked, nor are
// the other calls in the same batch. A message or refusal from the model
// ends the loop with an *UnexpectedResponseError.
func RunUntilTool[A any](ctx context.Context, a *Agent, target string, settings *Settings) (A, error) {
	var zero A
	step := Step[A]{
		OnToolCalls: func(ctx context.Context, a *Agent, calls []unifiedllm.ToolCall) (Action[A], error) {
			for _, call := range calls {
				if call.Name == target {
					args, err := decodeTarget[A](a, call)
					if err != nil {
						return Action[A]{}, err
					}
					return Out(args), nil
				}
			}
			return resolveAndContinue[A](ctx, a, calls)
		},
		OnMessage: unexpectedText[A],
		OnRefusal: unexpectedText[A],
	}

	action, err := RunLoop(ctx, a, step, settings)
	if err != nil {
		return zero, err
	}
	if action.Kind == ActionOut {
		return action.Value, nil
	}
	return zero, &UnexpectedResponseError{Text: action.Text}
}

// RunUntilCapability is RunUntilTool with c as the target. When the agent's
// registry has no capability of that name, c is advertised to the model for
// this call only; the registry itself is never modified.
func RunUntilCapability[A any](ctx context.Context, a *Agent, c *TypedCapability[A], settings *Settings) (A, error) {
	if _, ok := a.registry.Get(c.Name()); !ok {
		prev := a.target
		a.target = c
		defer func() { a.target = prev }()
	}
	return RunUntilTool[A](ctx, a, c.Name(), settings)
}

// RunUntilText loops until the model answers with text, resolving every
// batch of tool calls along the way. A refusal also ends the loop, and its
// text is returned as the result rather than as an error.
func RunUntilText(ctx context.Context, a *Agent, settings *Settings) (string, error) {
	step := Step[string]{
		OnToolCalls: resolveAndContinue[string],
		OnMessage: func(_ context.Context, _ *Agent, text string) (Action[string], error) {
			return Out(text), nil
		},
		OnRefusal: unexpectedText[string],
	}

	action, err := RunLoop(ctx, a, step, settings)
	if err != nil {
		return "", err
	}
	if action.Kind == ActionOut {
		return action.Value, nil
	}
	return action.Text, nil
}

func unexpectedText[T any](_ context.Context, _ *Agent, text string) (Action[T], error) {
	return Unexpected[T](text), nil
}

// resolveAndContinue resolves calls and feeds the joined results back as a
// user message. Recoverable failures are explained to the model instead.
func resolveAndContinue[T any](ctx context.Context, a *Agent, calls []unifiedllm.ToolCall) (Action[T], error) {
	results, err := a.ResolveToolCalls(ctx, calls)
	if err != nil {
		if !IsRecoverable(err) {
			return Action[T]{}, err
		}
		a.logger.Warn("tool call failed, asking model to retry", "error", err)
		a.emitter.Emit(EventToolCallRetry, map[string]any{"error": err.Error()})
		a.AppendUser(recoveryMessage(err, a.toolNames()))
		return Continue[T](), nil
	}
	a.AppendUser(strings.Join(results, "\n"))
	return Continue[T](), nil
}

// decodeTarget decodes the target call's arguments, using the registered
// capability's parser when it has the matching argument type.
func decodeTarget[A any](a *Agent, call unifiedllm.ToolCall) (A, error) {
	if c, ok := a.capability(call.Name); ok {
		if typed, ok := c.(*TypedCapability[A]); ok {
			return typed.Parse(call.Arguments)
		}
	}
	var args A
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return args, &IncorrectToolCallError{
			Tool:   call.Name,
			Schema: SchemaFor[A](),
			Args:   string(call.Arguments),
			Cause:  err,
		}
	}
	return args, nil
}
