package rules

import (
	"fmt"

	"github.com/raspd/raspd/internal/config"
)

// BuildStore seeds a registry and store from the bootstrap section of the
// config. The backend replaces both on the first accepted sync.
func BuildStore(cfg *config.Config) (*Store, *Registry, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	registry := NewRegistry()
	defs := make([]Definition, 0, len(cfg.RegExps))
	for _, raw := range cfg.RegExps {
		defs = append(defs, Definition{ID: raw.ID, Value: raw.Pattern})
	}
	if err := registry.Replace(defs); err != nil {
		return nil, nil, err
	}

	store := NewStore(registry)
	seed := make([]Rule, 0, len(cfg.Rules))
	for _, raw := range cfg.Rules {
		seed = append(seed, Rule{
			ID:          raw.ID,
			IsEnabled:   raw.IsEnabled,
			ShouldBlock: raw.ShouldBlock,
			RegExps:     append([]string(nil), raw.RegExps...),
		})
	}
	store.ReplaceRules(seed)

	return store, registry, nil
}
