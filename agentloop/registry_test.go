package agentloop

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRegistryDescriptorsSorted(t *testing.T) {
	var n int
	reg := NewRegistry(counter("zeta", "", &n), counter("alpha", "", &n), counter("mid", "", &n))

	descs := reg.Descriptors()
	want := []string{"alpha", "mid", "zeta"}
	if len(descs) != len(want) {
		t.Fatalf("expected %d descriptors, got %d", len(want), len(descs))
	}
	for i, name := range want {
		if descs[i].Name != name {
			t.Errorf("descriptor %d: expected %q, got %q", i, name, descs[i].Name)
		}
	}
	defs := reg.ToolDefinitions()
	if len(defs) != 3 || defs[0].Name != "alpha" {
		t.Errorf("unexpected tool definitions: %v", defs)
	}
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	first := NewCapability[EchoArgs]("echo", "first", nil)
	second := NewCapability[EchoArgs]("echo", "second", nil)
	reg := NewRegistry(first, second)

	if reg.Len() != 1 {
		t.Fatalf("expected 1 capability, got %d", reg.Len())
	}
	c, ok := reg.Get("echo")
	if !ok || c.Description() != "second" {
		t.Errorf("expected the second registration to win, got %v", c)
	}
}

func TestRegistryDispatch(t *testing.T) {
	var n int
	reg := NewRegistry(counter("count", "counted", &n))

	out, found, err := reg.Dispatch(context.Background(), "count", json.RawMessage(`{}`))
	if err != nil || !found || out != "counted" || n != 1 {
		t.Errorf("Dispatch = (%q, %v, %v), calls=%d", out, found, err, n)
	}

	_, found, err = reg.Dispatch(context.Background(), "missing", json.RawMessage(`{}`))
	if found || err != nil {
		t.Errorf("expected not found without error, got found=%v err=%v", found, err)
	}

	reg.Unregister("count")
	if _, ok := reg.Get("count"); ok {
		t.Error("expected capability to be unregistered")
	}
}

func TestRegistryEmpty(t *testing.T) {
	reg := NewRegistry()
	if defs := reg.ToolDefinitions(); defs != nil {
		t.Errorf("expected nil tool definitions, got %v", defs)
	}
	if names := reg.Names(); len(names) != 0 {
		t.Errorf("expected no names, got %v", names)
	}
}
