package provider

import (
	"fmt"
	"slices"
	"sync"
)

// Registry holds registered provider descriptors. The zero value is not
// usable; create instances with NewRegistry. Package-level functions
// operate on Default.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
}

// Default is the process-wide registry that provider packages register
// into from init().
var Default = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Descriptor)}
}

// Register adds a descriptor to the default registry.
// Panics if a provider with the same name is already registered.
func Register(d Descriptor) {
	Default.Register(d)
}

// Register adds a descriptor.
// Panics if a provider with the same name is already registered.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[d.Name]; exists {
		panic(fmt.Sprintf("provider: %q already registered", d.Name))
	}
	if d.New == nil {
		panic(fmt.Sprintf("provider: %q registered without a factory", d.Name))
	}
	r.entries[d.Name] = d
}

// Filter returns the descriptors whose class set contains every given tag
// and whose rank is at least minRank. The result reflects the live set of
// registered providers at call time; no matches yields an empty slice.
func (r *Registry) Filter(class []string, minRank Rank) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Descriptor
	for _, d := range r.entries {
		if d.Rank < minRank {
			continue
		}
		if !d.HasClass(class...) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[name]
	return d, ok
}

// Names returns all registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
