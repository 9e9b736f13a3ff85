// Package agentloop drives a tool-calling conversation with a language model.
//
// An Agent holds one linear conversation: a fixed system prompt, a fixed
// user message and the history that grows as the model answers. Each Step
// sends the whole conversation to a Completer together with the descriptors
// of every registered Capability, classifies the first choice of the
// response and hands it to exactly one continuation.
//
// # Classification
//
// A choice is classified by the first matching rule:
//
//   - tool calls: finish reason tool_calls, or any tool calls present
//   - refusal: finish reason content_filter, or a refusal present
//   - message: finish reason stop or length, or content present
//
// Anything else is an UnsupportedChoiceError. The assistant message for the
// matched branch is appended before the continuation runs.
//
// # Loops
//
// RunUntilTool stops when the model calls a chosen target tool and returns
// its decoded arguments; text or a refusal is an UnexpectedResponseError.
// RunUntilText stops when the model answers with text, and also returns the
// text of a refusal. In both loops a call to an unknown tool or a call with
// malformed arguments is explained to the model in a user message and the
// loop continues; any other error ends it.
//
// # Quick Start
//
//	type Answer struct {
//	    Answer string `json:"answer" jsonschema:"description=The final answer"`
//	}
//
//	ws, err := tools.NewWorkspace("./repo")
//	if err != nil {
//	    return err
//	}
//	registry := agentloop.NewRegistry(tools.All(ws)...)
//	answer := agentloop.NewCapability[Answer]("answer", "Report the final answer", nil)
//	agent := agentloop.NewAgent(client, registry, "How many Go files are there?", &agentloop.AgentConfig{
//	    Model: "gpt-4.1-mini",
//	})
//	defer agent.Close()
//
//	got, err := agentloop.RunUntilCapability(ctx, agent, answer, nil)
package agentloop
