package unifiedllm

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	SupportsTools bool     `json:"supports_tools"`
	StrictTools   bool     `json:"strict_tools"` // honors strict schema-conforming tool calls
	Refusals      bool     `json:"refusals"`     // reports refusals as a separate field
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog. The first entry per provider is the
// provider default.
var Models = []ModelInfo{
	// OpenAI
	{
		ID: "gpt-4.1-mini", Provider: "openai", DisplayName: "GPT-4.1 mini",
		ContextWindow: 1047576, SupportsTools: true, StrictTools: true, Refusals: true,
		Aliases: []string{"mini"},
	},
	{
		ID: "gpt-4.1", Provider: "openai", DisplayName: "GPT-4.1",
		ContextWindow: 1047576, SupportsTools: true, StrictTools: true, Refusals: true,
	},
	{
		ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128000, SupportsTools: true, StrictTools: true, Refusals: true,
		Aliases: []string{"4o"},
	},

	// Anthropic
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, SupportsTools: true,
		Aliases: []string{"sonnet"},
	},
	{
		ID: "claude-haiku-4-5", Provider: "anthropic", DisplayName: "Claude Haiku 4.5",
		ContextWindow: 200000, SupportsTools: true,
		Aliases: []string{"haiku"},
	},
}

// GetModelInfo returns the catalog entry for a model or alias, or nil if unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ResolveModel maps an alias to its canonical model ID. Unknown names are
// returned unchanged so callers can pass models the catalog does not list.
func ResolveModel(modelID string) string {
	if info := GetModelInfo(modelID); info != nil {
		return info.ID
	}
	return modelID
}

// DefaultModel returns the default model ID for a provider, or "" if the
// catalog has none.
func DefaultModel(provider string) string {
	for i := range Models {
		if Models[i].Provider == provider {
			return Models[i].ID
		}
	}
	return ""
}
