package rules

import (
	"fmt"
	"regexp"
	"sync"
)

// Definition is a registry entry as configured locally or sent by the backend.
type Definition struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Registry resolves regex identifiers referenced by rules to compiled patterns.
type Registry struct {
	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

func NewRegistry() *Registry {
	return &Registry{patterns: map[string]*regexp.Regexp{}}
}

// Replace compiles defs and swaps them in. Either every definition compiles
// or the registry is left untouched. An empty list is a no-op.
func (r *Registry) Replace(defs []Definition) error {
	if len(defs) == 0 {
		return nil
	}

	compiled := make(map[string]*regexp.Regexp, len(defs))
	for _, def := range defs {
		if def.ID == "" {
			return fmt.Errorf("regexp definition without id")
		}
		re, err := regexp.Compile(def.Value)
		if err != nil {
			return fmt.Errorf("regexp %s: %w", def.ID, err)
		}
		compiled[def.ID] = re
	}

	r.mu.Lock()
	r.patterns = compiled
	r.mu.Unlock()
	return nil
}

func (r *Registry) Resolve(id string) (*regexp.Regexp, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	re, ok := r.patterns[id]
	return re, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}
