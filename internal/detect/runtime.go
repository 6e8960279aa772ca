package detect

import "github.com/raspd/raspd/internal/policy"

const (
	MessageDetected = "ProtectOnce has detected an attack"
	MessageBlocked  = "ProtectOnce has blocked an attack"
)

// Kind tags which detector an instrumented call site is routed to.
type Kind string

const (
	KindRegexp Kind = "regexp"
	KindSQLi   Kind = "sqli"
)

// Event is a call-site invocation routed to the regex detector.
type Event struct {
	Args       []any    `json:"args"`
	Context    string   `json:"context"`
	Message    string   `json:"message,omitempty"`
	Result     any      `json:"result,omitempty"`
	ModifyArgs bool     `json:"modifyArgs,omitempty"`
	CallStack  []string `json:"callStack,omitempty"`
}

// SQLEvent is a call-site invocation routed to the SQL injection detector.
type SQLEvent struct {
	Context string       `json:"context"`
	Data    SQLEventData `json:"data"`
}

type SQLEventData struct {
	Query     string   `json:"query"`
	CallStack []string `json:"callStack,omitempty"`
	SessionID string   `json:"poSessionId,omitempty"`
}

// RuntimeData carries one detection attempt. Action moves from none to
// alert or block at most once.
type RuntimeData struct {
	Args       []any         `json:"args"`
	Context    string        `json:"context"`
	Action     policy.Action `json:"action"`
	Message    string        `json:"message,omitempty"`
	Result     any           `json:"result,omitempty"`
	ModifyArgs bool          `json:"modifyArgs,omitempty"`
	CallStack  []string      `json:"callStack,omitempty"`
}

func NewRuntimeData(e Event) *RuntimeData {
	return &RuntimeData{
		Args:       e.Args,
		Context:    e.Context,
		Action:     policy.ActionNone,
		Message:    e.Message,
		Result:     e.Result,
		ModifyArgs: e.ModifyArgs,
		CallStack:  e.CallStack,
	}
}

func (d *RuntimeData) SetAlert() {
	if d.Action != policy.ActionNone {
		return
	}
	d.Action = policy.ActionAlert
}

func (d *RuntimeData) SetBlock() {
	if d.Action != policy.ActionNone {
		return
	}
	d.Action = policy.ActionBlock
	d.Message = MessageBlocked
}

// Apply moves the data to the given terminal action.
func (d *RuntimeData) Apply(action policy.Action) {
	switch action {
	case policy.ActionBlock:
		d.SetBlock()
	case policy.ActionAlert:
		d.SetAlert()
	}
}

func (d *RuntimeData) Verdict() policy.Action {
	return d.Action
}

// RASPData adds the oracle confidence and the originating session.
type RASPData struct {
	RuntimeData
	Confidence float64 `json:"confidence"`
	SessionID  string  `json:"sessionId,omitempty"`
}

type SQLData struct {
	RASPData
	Query string `json:"query"`
}

type SQLParams struct {
	Query string   `json:"query"`
	Stack []string `json:"stack"`
}

func NewSQLData(e SQLEvent) *SQLData {
	return &SQLData{
		RASPData: RASPData{
			RuntimeData: RuntimeData{
				Context:   e.Context,
				Action:    policy.ActionNone,
				CallStack: e.Data.CallStack,
			},
			SessionID: e.Data.SessionID,
		},
		Query: e.Data.Query,
	}
}

func (d *SQLData) Params() SQLParams {
	return SQLParams{Query: d.Query, Stack: d.CallStack}
}
