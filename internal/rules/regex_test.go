package rules

import (
	"testing"

	"github.com/raspd/raspd/internal/config"
)

func TestRegistryReplaceAllOrNothing(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Replace([]Definition{{ID: "xss", Value: "(?i)<script>"}}); err != nil {
		t.Fatalf("Replace error: %v", err)
	}

	if err := registry.Replace([]Definition{{ID: "ok", Value: "a"}, {ID: "bad", Value: "["}}); err == nil {
		t.Fatalf("expected compile error")
	}
	if _, ok := registry.Resolve("xss"); !ok {
		t.Fatalf("expected previous pattern to be kept")
	}
	if _, ok := registry.Resolve("ok"); ok {
		t.Fatalf("expected partial update to be rejected")
	}

	if err := registry.Replace(nil); err != nil {
		t.Fatalf("empty replace should be a no-op: %v", err)
	}
	if registry.Len() != 1 {
		t.Fatalf("expected 1 pattern, got %d", registry.Len())
	}
}

func TestBuildStoreFromConfig(t *testing.T) {
	cfg := &config.Config{
		RegExps: []config.RegExp{{ID: "xss", Pattern: "(?i)<script"}},
		Rules: []config.Rule{
			{ID: "xss-1", IsEnabled: true, RegExps: []string{"xss"}},
		},
	}

	store, registry, err := BuildStore(cfg)
	if err != nil {
		t.Fatalf("BuildStore error: %v", err)
	}
	if _, ok := store.Rule("xss-1"); !ok {
		t.Fatalf("expected bootstrap rule")
	}
	re, ok := registry.Resolve("xss")
	if !ok || !re.MatchString("<SCRIPT>") {
		t.Fatalf("expected compiled bootstrap pattern")
	}
}
