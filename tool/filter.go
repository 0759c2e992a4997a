// ABOUTME: Implements FilteredRegistry - a filtered view of a Registry that
// ABOUTME: applies allow/deny lists to control which tools a provider sees.
package tool

// FilteredRegistry wraps a Source with allow/deny filtering.
type FilteredRegistry struct {
	source  Source
	allowed []string
	denied  []string
}

// NewFilteredRegistry creates a filtered view of the source.
// allowed: if non-empty, only these tools are visible (allowlist)
// denied: these tools are never visible (denylist, takes precedence)
func NewFilteredRegistry(source Source, allowed, denied []string) *FilteredRegistry {
	return &FilteredRegistry{source: source, allowed: allowed, denied: denied}
}

// Get retrieves a tool if it passes the filter.
func (f *FilteredRegistry) Get(name string) (Entry, bool) {
	if !f.visible(name) {
		return Entry{}, false
	}
	return f.source.Get(name)
}

// All returns the visible entries in the source's order.
func (f *FilteredRegistry) All() []Entry {
	all := f.source.All()
	visible := make([]Entry, 0, len(all))
	for _, e := range all {
		if f.visible(e.Tool.Name) {
			visible = append(visible, e)
		}
	}
	return visible
}

func (f *FilteredRegistry) visible(name string) bool {
	for _, d := range f.denied {
		if d == name {
			return false
		}
	}
	if len(f.allowed) == 0 {
		return true
	}
	for _, a := range f.allowed {
		if a == name {
			return true
		}
	}
	return false
}
