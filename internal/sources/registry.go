package sources

import (
	"fmt"
	"github.com/samber/lo"
	"sort"
)

// Registry maps module identifiers to their sources. It is built once at startup
// and never mutated afterwards.
type Registry struct {
	sources map[string]Source
}

func NewRegistry(sources ...Source) (*Registry, error) {
	registry := &Registry{sources: make(map[string]Source, len(sources))}

	for _, source := range sources {
		name := source.Name()
		if name == "" {
			return nil, fmt.Errorf("source with empty name")
		}
		if _, exists := registry.sources[name]; exists {
			return nil, fmt.Errorf("duplicate source %q", name)
		}
		registry.sources[name] = source
	}
	return registry, nil
}

func (r *Registry) Get(module string) (Source, bool) {
	source, ok := r.sources[module]
	return source, ok
}

// Modules returns the registered module names in alphabetical order.
func (r *Registry) Modules() []string {
	modules := lo.Keys(r.sources)
	sort.Strings(modules)
	return modules
}
