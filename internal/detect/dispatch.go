package detect

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/raspd/raspd/internal/policy"
)

var ErrUnknownKind = errors.New("unknown detector kind")

// Outcome is the detector result handed back to the instrumentation, which
// inspects the verdict to decide whether the original call proceeds.
type Outcome interface {
	Verdict() policy.Action
}

// Dispatcher routes a raw invocation to the detector registered for its kind.
type Dispatcher struct {
	regex *RegexDetector
	sqli  *SQLiDetector
}

func NewDispatcher(regex *RegexDetector, sqli *SQLiDetector) *Dispatcher {
	return &Dispatcher{regex: regex, sqli: sqli}
}

func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindRegexp:
		return KindRegexp, nil
	case KindSQLi:
		return KindSQLi, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}

func (d *Dispatcher) Dispatch(kind Kind, payload []byte) (Outcome, error) {
	switch kind {
	case KindRegexp:
		if d.regex == nil {
			break
		}
		var e Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode regexp event: %w", err)
		}
		return d.regex.CheckRegexp(e), nil
	case KindSQLi:
		if d.sqli == nil {
			break
		}
		var e SQLEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode sqli event: %w", err)
		}
		return d.sqli.DetectSQLi(e), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
