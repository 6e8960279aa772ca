package session

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/raspd/raspd/internal/normalize"
)

// Registry maps instrumentation session ids to request contexts. Entries
// expire after ttl and the least recently used ones are evicted at capacity.
type Registry struct {
	cache *expirable.LRU[string, *normalize.Session]
}

func NewRegistry(capacity int, ttl time.Duration) *Registry {
	if capacity <= 0 {
		capacity = 1
	}
	return &Registry{cache: expirable.NewLRU[string, *normalize.Session](capacity, nil, ttl)}
}

func (r *Registry) Put(id string, s *normalize.Session) {
	if id == "" || s == nil {
		return
	}
	r.cache.Add(id, s)
}

// Get returns the session registered under id, or nil.
func (r *Registry) Get(id string) *normalize.Session {
	if r == nil || id == "" {
		return nil
	}
	s, ok := r.cache.Get(id)
	if !ok {
		return nil
	}
	return s
}

func (r *Registry) Delete(id string) bool {
	return r.cache.Remove(id)
}

func (r *Registry) Len() int {
	return r.cache.Len()
}
