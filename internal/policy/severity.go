package policy

import "fmt"

type Severity string

const (
	SeverityMinor    Severity = "MINOR"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
)

// Thresholds are inclusive upper bounds: confidence <= Minor is MINOR,
// confidence <= Major is MAJOR, anything above is CRITICAL.
type Thresholds struct {
	Minor int
	Major int
}

func DefaultThresholds() Thresholds {
	return Thresholds{Minor: 60, Major: 90}
}

func NewThresholds(minor, major int) (Thresholds, error) {
	if minor >= major {
		return Thresholds{}, fmt.Errorf("minor threshold %d must be lower than major %d", minor, major)
	}
	return Thresholds{Minor: minor, Major: major}, nil
}

func (t Thresholds) Severity(confidence float64) Severity {
	switch {
	case confidence <= float64(t.Minor):
		return SeverityMinor
	case confidence <= float64(t.Major):
		return SeverityMajor
	default:
		return SeverityCritical
	}
}
