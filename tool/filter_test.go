// ABOUTME: Tests for FilteredRegistry - allowlist, denylist, and precedence.
package tool

import (
	"context"
	"testing"
)

func filterTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	handler := func(context.Context, map[string]any) (string, error) { return "", nil }
	for _, name := range []string{"read", "write", "delete"} {
		def := MustNew(name, name+" a thing", nil, nil)
		if err := r.Register(def, handler); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	return r
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Tool.Name
	}
	return out
}

func TestFilteredRegistryAllowlist(t *testing.T) {
	f := NewFilteredRegistry(filterTestRegistry(t), []string{"read"}, nil)

	got := names(f.All())
	if len(got) != 1 || got[0] != "read" {
		t.Errorf("expected [read], got %v", got)
	}
	if _, ok := f.Get("write"); ok {
		t.Error("write should not be visible through allowlist")
	}
	if _, ok := f.Get("read"); !ok {
		t.Error("read should be visible")
	}
}

func TestFilteredRegistryDenylist(t *testing.T) {
	f := NewFilteredRegistry(filterTestRegistry(t), nil, []string{"delete"})

	got := names(f.All())
	if len(got) != 2 {
		t.Fatalf("expected 2 visible tools, got %v", got)
	}
	if _, ok := f.Get("delete"); ok {
		t.Error("delete should be hidden")
	}
}

func TestFilteredRegistryDenyBeatsAllow(t *testing.T) {
	f := NewFilteredRegistry(filterTestRegistry(t), []string{"read", "delete"}, []string{"delete"})

	got := names(f.All())
	if len(got) != 1 || got[0] != "read" {
		t.Errorf("denylist must take precedence, got %v", got)
	}
}

func TestFilteredRegistryEmptyFiltersPassThrough(t *testing.T) {
	f := NewFilteredRegistry(filterTestRegistry(t), nil, nil)
	if got := names(f.All()); len(got) != 3 {
		t.Errorf("expected all 3 tools visible, got %v", got)
	}
}
