package agentloop

import (
	"time"

	"github.com/martinemde/agenty/unifiedllm"
)

// Settings controls generation for one step. A Settings value passed to a
// loop overrides the agent default for the whole call.
type Settings struct {
	Temperature     float64                `json:"temperature" yaml:"temperature"`
	PresencePenalty float64                `json:"presence_penalty" yaml:"presence_penalty"`
	MaxTokens       int                    `json:"max_tokens" yaml:"max_tokens"` // 0 = provider default
	ToolChoice      unifiedllm.ToolChoice  `json:"tool_choice" yaml:"tool_choice"`
	Timeout         time.Duration          `json:"timeout" yaml:"timeout"` // per attempt; 0 = none
	Retry           unifiedllm.RetryPolicy `json:"-" yaml:"retry"`
}

// DefaultSettings returns the settings used when neither the agent nor the
// caller supplies any.
func DefaultSettings() Settings {
	return Settings{
		Temperature: 0.7,
		MaxTokens:   4096,
		ToolChoice:  unifiedllm.ToolChoice{Mode: unifiedllm.ToolChoiceAuto},
		Timeout:     120 * time.Second,
		Retry:       unifiedllm.DefaultRetryPolicy(),
	}
}
