package rules

// Rule is one backend hook definition. Rules are rebuilt on every accepted
// sync and never mutated in place.
type Rule struct {
	ID          string   `json:"id"`
	IsEnabled   bool     `json:"isEnabled"`
	ShouldBlock bool     `json:"shouldBlock"`
	RegExps     []string `json:"regExps"`
}

// SyncOutcome describes what ApplyIncoming did with a backend payload.
type SyncOutcome string

const (
	SyncApplied   SyncOutcome = "applied"
	SyncRetained  SyncOutcome = "retained"
	SyncMalformed SyncOutcome = "malformed"
)

// clone never returns a nil RegExps so rules encode as "regExps":[].
func (r Rule) clone() Rule {
	r.RegExps = append(make([]string, 0, len(r.RegExps)), r.RegExps...)
	return r
}
