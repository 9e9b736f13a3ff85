package agentloop

import (
	"context"

	"github.com/martinemde/agenty/unifiedllm"
)

// ResolveToolCalls runs calls one at a time in the order the model gave
// them and returns their results in the same order. The first unknown tool
// or failing call stops resolution; later calls never run.
func (a *Agent) ResolveToolCalls(ctx context.Context, calls []unifiedllm.ToolCall) ([]string, error) {
	results := make([]string, 0, len(calls))
	for _, call := range calls {
		a.emitter.Emit(EventToolCallStart, map[string]any{
			"tool_name": call.Name,
			"call_id":   call.ID,
		})

		output, found, err := a.registry.Dispatch(ctx, call.Name, call.Arguments)
		if !found {
			err = &NoSuchToolError{Name: call.Name}
		}
		if err != nil {
			a.emitter.Emit(EventToolCallEnd, map[string]any{
				"call_id": call.ID,
				"error":   err.Error(),
			})
			return nil, err
		}

		a.emitter.Emit(EventToolCallEnd, map[string]any{
			"call_id": call.ID,
			"output":  output,
		})
		results = append(results, TruncateToolOutput(output, call.Name, a.config.ToolOutputLimits, a.config.ToolLineLimits))
	}
	return results, nil
}
