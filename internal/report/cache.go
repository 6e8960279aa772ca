package report

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TypeAlert = "ALERT"
	TypeBlock = "BLOCK"
)

// Report is a self-contained detection record. It is not re-validated
// against the rule set once created.
type Report struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	RuleID    string    `json:"ruleId"`
	Detector  string    `json:"detector"`
	Name      string    `json:"name,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	SourceIP  string    `json:"ip,omitempty"`
	Message   string    `json:"message"`
	Path      string    `json:"path,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New stamps a report with an id and the current time.
func New(r Report) Report {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return r
}

// Cache buffers reports until the next heartbeat drains it.
type Cache struct {
	mu      sync.Mutex
	reports []Report
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) Push(r Report) {
	c.mu.Lock()
	c.reports = append(c.reports, r)
	c.mu.Unlock()
}

// Flush returns every buffered report in insertion order and empties the
// cache. The result is never nil.
func (c *Cache) Flush() []Report {
	c.mu.Lock()
	out := c.reports
	c.reports = nil
	c.mu.Unlock()

	if out == nil {
		return []Report{}
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reports)
}
