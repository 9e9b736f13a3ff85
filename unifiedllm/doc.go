// Package unifiedllm is the completion-client boundary used by the agent
// loop. It presents one provider-agnostic request/response shape and routes
// each request to a registered provider adapter.
//
// # Architecture
//
//   - Shared types: Message, ToolDefinition, Request, Response, Choice
//   - Provider adapters: OpenAIAdapter (openai-go), AnthropicAdapter
//     (anthropic-sdk-go) and GollmAdapter (gollm)
//   - Client: provider routing and middleware
//   - Retry: exponential backoff over the typed error hierarchy
//
// # Quick Start
//
//	adapter := unifiedllm.NewOpenAIAdapter(os.Getenv("OPENAI_API_KEY"), "")
//	client := unifiedllm.NewClient(unifiedllm.WithProvider("openai", adapter))
//
//	resp, _ := client.Complete(ctx, unifiedllm.Request{
//	    Model:    "gpt-4.1-mini",
//	    Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	})
//	choice, _ := resp.FirstChoice()
//	fmt.Println(choice.Text())
//
// # Finish Reasons
//
// Every adapter normalizes the provider's stop signal into one of the
// FinishReason constants. A response choice may additionally carry text
// content, a refusal, and a list of requested tool calls; deciding what a
// choice means is left to the caller.
package unifiedllm
