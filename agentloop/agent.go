package agentloop

import (
	"context"
	"log/slog"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/martinemde/agenty/unifiedllm"
)

// DefaultSystemPrompt is used when AgentConfig.System is empty.
const DefaultSystemPrompt = "You are an expert agent that calls tool to complete your task."

// Completer sends one completion request. *unifiedllm.Client implements it.
type Completer interface {
	Complete(ctx context.Context, req unifiedllm.Request) (*unifiedllm.Response, error)
}

// AgentConfig holds configuration for an agent.
type AgentConfig struct {
	System              string         `json:"system,omitempty"`
	Model               string         `json:"model"`
	Provider            string         `json:"provider,omitempty"`
	Prefix              string         `json:"prefix,omitempty"`    // forwarded as request metadata
	MaxSteps            int            `json:"max_steps"`           // per loop call; 0 = unlimited
	Settings            *Settings      `json:"settings,omitempty"`  // nil = DefaultSettings()
	ToolOutputLimits    map[string]int `json:"tool_output_limits,omitempty"`
	ToolLineLimits      map[string]int `json:"tool_line_limits,omitempty"`
	EnableLoopDetection bool           `json:"enable_loop_detection"`
	LoopDetectionWindow int            `json:"loop_detection_window"`
	EventBuffer         int            `json:"event_buffer"`
	Logger              *slog.Logger   `json:"-"`
}

// DefaultAgentConfig returns the default configuration.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		System:              DefaultSystemPrompt,
		EnableLoopDetection: true,
		LoopDetectionWindow: 10,
		EventBuffer:         256,
	}
}

// Agent drives one linear conversation with a model. An Agent is owned by a
// single goroutine; only the Registry may be shared.
type Agent struct {
	id       string
	conv     *Conversation
	registry *Registry
	target   Capability // advertised for the current RunUntilCapability only
	client   Completer
	config   AgentConfig
	defaults Settings
	logger   *slog.Logger
	emitter  *EventEmitter
	usage    unifiedllm.Usage
}

// NewAgent creates an agent that asks user of the model behind client, with
// the capabilities in registry available. A nil registry means no tools.
func NewAgent(client Completer, registry *Registry, user string, config *AgentConfig) *Agent {
	cfg := DefaultAgentConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.System == "" {
		cfg.System = DefaultSystemPrompt
	}
	if registry == nil {
		registry = NewRegistry()
	}
	defaults := DefaultSettings()
	if cfg.Settings != nil {
		defaults = *cfg.Settings
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.New().String()
	a := &Agent{
		id:       id,
		conv:     NewConversation(cfg.System, user),
		registry: registry,
		client:   client,
		config:   cfg,
		defaults: defaults,
		logger:   logger.With("session_id", id),
		emitter:  NewEventEmitter(id, cfg.EventBuffer),
	}
	a.emitter.Emit(EventSessionStart, map[string]any{"model": cfg.Model})
	return a
}

// ID returns the agent's session id.
func (a *Agent) ID() string { return a.id }

// Conversation returns the agent's conversation.
func (a *Agent) Conversation() *Conversation { return a.conv }

// Registry returns the agent's capability registry.
func (a *Agent) Registry() *Registry { return a.registry }

// Usage returns the token usage accumulated over all steps.
func (a *Agent) Usage() unifiedllm.Usage { return a.usage }

// Events returns the agent's event channel.
func (a *Agent) Events() <-chan SessionEvent { return a.emitter.Events() }

// Close ends the session and closes the event channel.
func (a *Agent) Close() {
	a.emitter.Emit(EventSessionEnd, nil)
	a.emitter.Close()
}

// AppendUser appends a user message to the conversation.
func (a *Agent) AppendUser(text string) {
	a.conv.AppendUser(text)
	a.emitter.Emit(EventUserInput, map[string]any{"content": text})
}

// RevertLast removes the most recent conversation message.
func (a *Agent) RevertLast() {
	a.conv.RevertLast()
}

// capability looks name up in the run's target and then the registry.
func (a *Agent) capability(name string) (Capability, bool) {
	if a.target != nil && a.target.Name() == name {
		return a.target, true
	}
	return a.registry.Get(name)
}

func (a *Agent) toolDefinitions() []unifiedllm.ToolDefinition {
	defs := a.registry.ToolDefinitions()
	if a.target == nil {
		return defs
	}
	if _, ok := a.registry.Get(a.target.Name()); ok {
		return defs
	}
	defs = append(defs, Describe(a.target).ToolDefinition())
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (a *Agent) toolNames() []string {
	names := a.registry.Names()
	if a.target == nil || slices.Contains(names, a.target.Name()) {
		return names
	}
	names = append(names, a.target.Name())
	sort.Strings(names)
	return names
}

func (a *Agent) effectiveSettings(override *Settings) Settings {
	if override != nil {
		return *override
	}
	return a.defaults
}

func (a *Agent) buildRequest(s Settings) unifiedllm.Request {
	req := unifiedllm.Request{
		Model:           a.config.Model,
		Provider:        a.config.Provider,
		Messages:        a.conv.FullContext(),
		Tools:           a.toolDefinitions(),
		Temperature:     unifiedllm.Float(s.Temperature),
		PresencePenalty: unifiedllm.Float(s.PresencePenalty),
	}
	if s.MaxTokens > 0 {
		req.MaxTokens = unifiedllm.Int(s.MaxTokens)
	}
	if len(req.Tools) > 0 && s.ToolChoice.Mode != "" {
		tc := s.ToolChoice
		req.ToolChoice = &tc
	}
	if a.config.Prefix != "" {
		req.Metadata = map[string]string{"prefix": a.config.Prefix}
	}
	return req
}
