package rules

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"
)

// Store holds the active rule set keyed by rule id together with the opaque
// hash the backend uses to skip resending an unchanged set.
type Store struct {
	mu       sync.RWMutex
	rules    map[string]Rule
	hash     string
	registry *Registry
}

// SyncResult reports what ApplyIncoming did. It never carries a hard error;
// a rejected payload leaves the previous rule set in place.
type SyncResult struct {
	Outcome   SyncOutcome
	Reason    string
	Rules     int
	RegExpErr error
}

func NewStore(registry *Registry) *Store {
	return &Store{rules: map[string]Rule{}, registry: registry}
}

// Rule returns the rule only when it exists and is enabled.
func (s *Store) Rule(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok || !rule.IsEnabled {
		return Rule{}, false
	}
	return rule.clone(), true
}

// ReplaceRules swaps in a full rule set. An empty set is ignored so a
// transient bad payload cannot wipe working rules.
func (s *Store) ReplaceRules(rules []Rule) bool {
	if len(rules) == 0 {
		return false
	}

	next := make(map[string]Rule, len(rules))
	for _, rule := range rules {
		next[rule.ID] = rule.clone()
	}

	s.mu.Lock()
	s.rules = next
	s.mu.Unlock()
	return true
}

func (s *Store) Hash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hash
}

func (s *Store) SetHash(hash string) {
	s.mu.Lock()
	s.hash = hash
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// RuntimeRules lists every known rule, enabled or not, sorted by id.
func (s *Store) RuntimeRules() []Rule {
	s.mu.RLock()
	out := make([]Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		out = append(out, rule.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type incoming struct {
	AgentRule json.RawMessage `json:"agentRule"`
}

type agentRule struct {
	Hash    json.RawMessage `json:"hash"`
	Hooks   json.RawMessage `json:"hooks"`
	RegExps json.RawMessage `json:"regExps"`
}

// ApplyIncoming consumes a heartbeat response of the form
// {"agentRule": {"hash": "...", "hooks": [...], "regExps": [...]}}.
func (s *Store) ApplyIncoming(raw []byte) SyncResult {
	var env incoming
	if err := json.Unmarshal(raw, &env); err != nil {
		return SyncResult{Outcome: SyncMalformed, Reason: "response is not a JSON object"}
	}
	if jsonKind(env.AgentRule) != '{' {
		return SyncResult{Outcome: SyncMalformed, Reason: "agentRule missing or not an object"}
	}

	var ar agentRule
	if err := json.Unmarshal(env.AgentRule, &ar); err != nil {
		return SyncResult{Outcome: SyncMalformed, Reason: "agentRule undecodable"}
	}

	var hash string
	if jsonKind(ar.Hash) == '"' {
		_ = json.Unmarshal(ar.Hash, &hash)
	}
	s.SetHash(hash)

	result := SyncResult{}
	if s.registry != nil && jsonKind(ar.RegExps) == '[' {
		var defs []Definition
		if err := json.Unmarshal(ar.RegExps, &defs); err != nil {
			result.RegExpErr = err
		} else if err := s.registry.Replace(defs); err != nil {
			result.RegExpErr = err
		}
	}

	switch jsonKind(ar.Hooks) {
	case 0, 'n':
		result.Outcome, result.Reason = SyncRetained, "no hooks"
		return result
	case '[':
	default:
		result.Outcome, result.Reason = SyncRetained, "hooks is not a list"
		return result
	}

	var items []json.RawMessage
	if err := json.Unmarshal(ar.Hooks, &items); err != nil {
		result.Outcome, result.Reason = SyncRetained, "hooks undecodable"
		return result
	}

	parsed := make([]Rule, 0, len(items))
	for _, item := range items {
		var rule Rule
		if err := json.Unmarshal(item, &rule); err != nil || rule.ID == "" {
			continue
		}
		parsed = append(parsed, rule)
	}

	if !s.ReplaceRules(parsed) {
		result.Outcome, result.Reason = SyncRetained, "hooks empty"
		return result
	}
	result.Outcome = SyncApplied
	result.Rules = len(parsed)
	return result
}

// jsonKind returns the first significant byte of a raw JSON value, 'n' for
// null and 0 for an absent value.
func jsonKind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
