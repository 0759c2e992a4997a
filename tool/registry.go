// ABOUTME: Implements the Registry - thread-safe registration of local tools
// ABOUTME: and the callbacks that execute them.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler executes a locally registered tool. Arguments have already been
// validated and coerced against the tool's parameters.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Entry pairs a tool definition with its local handler.
type Entry struct {
	Tool    Tool
	Handler Handler
}

// Source is a read-only view over a set of registered tools. Registry and
// FilteredRegistry both implement it.
type Source interface {
	Get(name string) (Entry, bool)
	All() []Entry
}

// Registry holds locally registered tools. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Entry)}
}

// Register adds a tool with its handler. Registering a name twice
// replaces the earlier entry.
func (r *Registry) Register(t Tool, h Handler) error {
	if h == nil {
		return fmt.Errorf("tool %q: handler must not be nil", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = Entry{Tool: t, Handler: h}
	return nil
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get retrieves a registered tool by name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e, ok
}

// All returns every registered entry, ordered by tool name so the
// provider always sees a deterministic tool list.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.tools))
	for _, e := range r.tools {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Tool.Name < entries[j].Tool.Name })
	return entries
}

// List returns the registered tool names in sorted order.
func (r *Registry) List() []string {
	entries := r.All()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Tool.Name
	}
	return names
}
