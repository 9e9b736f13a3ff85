package agentloop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/martinemde/agenty/unifiedllm"
)

// Capability is a named operation the model may call with JSON arguments.
// Implementations must be safe for concurrent use.
//
// Problems the model can act on, such as a missing file, should be returned
// as result text rather than as an error: errors other than
// IncorrectToolCallError abort the loop.
type Capability interface {
	Name() string
	Description() string
	// Schema is the JSON Schema of the arguments object.
	Schema() map[string]any
	// Strict asks the endpoint to only generate schema-conforming arguments.
	Strict() bool
	// Call parses raw and runs the capability.
	Call(ctx context.Context, raw json.RawMessage) (string, error)
}

// Descriptor is the advertised form of a capability.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Strict      bool           `json:"strict,omitempty"`
}

// Describe returns the descriptor of c.
func Describe(c Capability) Descriptor {
	return Descriptor{
		Name:        c.Name(),
		Description: c.Description(),
		Parameters:  c.Schema(),
		Strict:      c.Strict(),
	}
}

// ToolDefinition converts the descriptor for a completion request.
func (d Descriptor) ToolDefinition() unifiedllm.ToolDefinition {
	return unifiedllm.ToolDefinition{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
		Strict:      d.Strict,
	}
}

// CapabilityOption configures a TypedCapability.
type CapabilityOption func(*capabilityConfig)

type capabilityConfig struct {
	strict bool
}

// WithStrict marks the capability strict. Strict capabilities also reject
// arguments carrying unknown fields.
func WithStrict() CapabilityOption {
	return func(c *capabilityConfig) {
		c.strict = true
	}
}

// TypedCapability adapts a function over a Go argument type A to the
// Capability interface. The schema is derived from A's json and jsonschema
// struct tags; validate tags are enforced after decoding.
type TypedCapability[A any] struct {
	name        string
	description string
	strict      bool
	schema      map[string]any
	fn          func(ctx context.Context, args A) (string, error)
}

// NewCapability creates a capability named name whose arguments decode into A.
// fn may be nil for capabilities that only serve as a RunUntilTool target.
func NewCapability[A any](name, description string, fn func(ctx context.Context, args A) (string, error), opts ...CapabilityOption) *TypedCapability[A] {
	cfg := &capabilityConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &TypedCapability[A]{
		name:        name,
		description: description,
		strict:      cfg.strict,
		schema:      SchemaFor[A](),
		fn:          fn,
	}
}

func (c *TypedCapability[A]) Name() string           { return c.name }
func (c *TypedCapability[A]) Description() string    { return c.description }
func (c *TypedCapability[A]) Schema() map[string]any { return c.schema }
func (c *TypedCapability[A]) Strict() bool           { return c.strict }

// Parse decodes and validates raw arguments.
func (c *TypedCapability[A]) Parse(raw json.RawMessage) (A, error) {
	var args A
	dec := json.NewDecoder(bytes.NewReader(raw))
	if c.strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&args); err != nil {
		return args, c.incorrect(raw, err)
	}
	// Arguments are exactly one JSON value.
	if _, err := dec.Token(); err != io.EOF {
		return args, c.incorrect(raw, errors.New("unexpected data after arguments object"))
	}
	if err := validateArgs(args); err != nil {
		return args, c.incorrect(raw, err)
	}
	return args, nil
}

// Call parses raw and invokes the capability function.
func (c *TypedCapability[A]) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	args, err := c.Parse(raw)
	if err != nil {
		return "", err
	}
	if c.fn == nil {
		return "", nil
	}
	return c.fn(ctx, args)
}

func (c *TypedCapability[A]) incorrect(raw json.RawMessage, cause error) error {
	return &IncorrectToolCallError{
		Tool:   c.name,
		Schema: c.schema,
		Args:   string(raw),
		Cause:  cause,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateArgs runs struct validation on struct-shaped arguments. Other
// shapes carry no validate tags and pass as decoded.
func validateArgs(args any) error {
	v := reflect.ValueOf(args)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(v.Interface())
}

// SchemaFor derives an inline JSON Schema for A. Fields without omitempty
// are required and additional properties are disallowed, which is the shape
// strict tool calling expects.
func SchemaFor[A any]() map[string]any {
	t := reflect.TypeFor[A]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		// Expansion looks the type up by name, so it only applies to named structs.
		ExpandedStruct: t.Kind() == reflect.Struct && t.Name() != "",
	}
	s := r.ReflectFromType(t)

	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
