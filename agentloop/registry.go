package agentloop

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/martinemde/agenty/unifiedllm"
)

// Registry maps capability names to capabilities. Registering a name twice
// keeps the latest capability. It is safe for concurrent use.
type Registry struct {
	caps   map[string]Capability
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewRegistry creates a registry holding caps.
func NewRegistry(caps ...Capability) *Registry {
	r := &Registry{
		caps:   make(map[string]Capability, len(caps)),
		logger: slog.Default(),
	}
	for _, c := range caps {
		r.Register(c)
	}
	return r
}

// SetLogger replaces the registry logger.
func (r *Registry) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds or replaces a capability.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.caps[c.Name()]; ok {
		r.logger.Debug("replacing registered capability", "tool", c.Name())
	}
	r.caps[c.Name()] = c
}

// Unregister removes a capability from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caps, name)
}

// Get returns a registered capability by name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

// Names returns the sorted names of all registered capabilities.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}

// Descriptors returns the descriptors of all capabilities sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]Descriptor, 0, len(r.caps))
	for _, c := range r.caps {
		descs = append(descs, Describe(c))
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// ToolDefinitions returns Descriptors converted for a completion request.
func (r *Registry) ToolDefinitions() []unifiedllm.ToolDefinition {
	descs := r.Descriptors()
	if len(descs) == 0 {
		return nil
	}
	defs := make([]unifiedllm.ToolDefinition, len(descs))
	for i, d := range descs {
		defs[i] = d.ToolDefinition()
	}
	return defs
}

// Dispatch invokes the capability called name with raw arguments. found is
// false when no such capability is registered.
func (r *Registry) Dispatch(ctx context.Context, name string, raw json.RawMessage) (result string, found bool, err error) {
	c, ok := r.Get(name)
	if !ok {
		return "", false, nil
	}
	r.logger.Debug("dispatching tool call", "tool", name, "args_len", len(raw))
	result, err = c.Call(ctx, raw)
	return result, true, err
}
