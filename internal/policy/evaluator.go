package policy

type Action string

const (
	ActionNone  Action = "none"
	ActionAlert Action = "alert"
	ActionBlock Action = "block"
)

// Decide maps a matched rule's block flag to its terminal action. Detection
// confidence never takes part in this choice.
func Decide(shouldBlock bool) Action {
	if shouldBlock {
		return ActionBlock
	}
	return ActionAlert
}

// ReportType is the upper-case wire form of a terminal action.
func (a Action) ReportType() string {
	switch a {
	case ActionBlock:
		return "BLOCK"
	case ActionAlert:
		return "ALERT"
	default:
		return ""
	}
}
