package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"description=What to search for" validate:"required"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
}

func TestSchemaForStruct(t *testing.T) {
	schema := SchemaFor[searchArgs]()

	if schema["type"] != "object" {
		t.Errorf("expected object schema, got %v", schema["type"])
	}
	if _, ok := schema["$schema"]; ok {
		t.Error("expected $schema to be removed")
	}
	if schema["additionalProperties"] != false {
		t.Errorf("expected additionalProperties false, got %v", schema["additionalProperties"])
	}
	required, _ := schema["required"].([]any)
	if len(required) != 1 || required[0] != "query" {
		t.Errorf("expected only query required, got %v", schema["required"])
	}
	props, _ := schema["properties"].(map[string]any)
	query, _ := props["query"].(map[string]any)
	if query["description"] != "What to search for" {
		t.Errorf("expected description from tag, got %v", query)
	}
}

func TestCapabilityCall(t *testing.T) {
	c := NewCapability("search", "search things", func(_ context.Context, args searchArgs) (string, error) {
		return "found " + args.Query, nil
	})

	out, err := c.Call(context.Background(), json.RawMessage(`{"query":"go"}`))
	if err != nil || out != "found go" {
		t.Errorf("Call = (%q, %v)", out, err)
	}
	if c.Strict() {
		t.Error("expected non-strict by default")
	}
	d := Describe(c)
	if d.Name != "search" || d.Description != "search things" || d.Parameters == nil {
		t.Errorf("unexpected descriptor: %+v", d)
	}
}

func TestCapabilityRejectsBadArguments(t *testing.T) {
	c := NewCapability[searchArgs]("search", "", nil)

	tests := []struct {
		name string
		args string
	}{
		{"malformed json", `{"query":`},
		{"wrong type", `{"query":1}`},
		{"missing required", `{}`},
		{"out of range", `{"query":"go","limit":99}`},
		{"trailing object", `{"query":"go"} {"query":"other"}`},
		{"trailing garbage", `{"query":"go"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Call(context.Background(), json.RawMessage(tt.args))
			var incorrect *IncorrectToolCallError
			if !errors.As(err, &incorrect) {
				t.Fatalf("expected IncorrectToolCallError, got %v", err)
			}
			if incorrect.Tool != "search" || incorrect.Args != tt.args || incorrect.Schema == nil {
				t.Errorf("unexpected error fields: %+v", incorrect)
			}
		})
	}
}

func TestCapabilityStrictRejectsUnknownFields(t *testing.T) {
	args := json.RawMessage(`{"query":"go","extra":true}`)

	lenient := NewCapability[searchArgs]("search", "", nil)
	if _, err := lenient.Parse(args); err != nil {
		t.Errorf("non-strict capability should ignore unknown fields, got %v", err)
	}

	strict := NewCapability[searchArgs]("search", "", nil, WithStrict())
	if !strict.Strict() {
		t.Fatal("expected strict capability")
	}
	if _, err := strict.Parse(args); err == nil {
		t.Error("strict capability should reject unknown fields")
	}
	if _, err := strict.Parse(json.RawMessage(`{"query":"go"} {"query":"go"}`)); err == nil {
		t.Error("strict capability should reject trailing data")
	}
	if _, err := strict.Parse(json.RawMessage("{\"query\":\"go\"}\n")); err != nil {
		t.Errorf("trailing whitespace should be accepted, got %v", err)
	}
}

func TestCapabilityNilFunc(t *testing.T) {
	c := NewCapability[EchoArgs]("echo", "", nil)
	out, err := c.Call(context.Background(), json.RawMessage(`{"msg":"hi"}`))
	if err != nil || out != "" {
		t.Errorf("Call = (%q, %v)", out, err)
	}
}

func TestCapabilityNonStructArgs(t *testing.T) {
	c := NewCapability("upper", "", func(_ context.Context, s string) (string, error) {
		return s + "!", nil
	})
	if c.Schema()["type"] != "string" {
		t.Errorf("expected string schema, got %v", c.Schema())
	}
	out, err := c.Call(context.Background(), json.RawMessage(`"hey"`))
	if err != nil || out != "hey!" {
		t.Errorf("Call = (%q, %v)", out, err)
	}
}
