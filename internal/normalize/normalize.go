package normalize

// Session is the request-scoped context the instrumentation registers for a
// session id before calling the SQL injection detector.
type Session struct {
	Headers     map[string]string `json:"headers"`
	QueryParams map[string]any    `json:"queryParams"`
	SourceIP    string            `json:"sourceIP"`
	Path        string            `json:"path"`
}

// DetectorContext is the shape the SQL injection oracle consumes: every
// parameter value is a list of strings.
type DetectorContext struct {
	Header    map[string]string   `json:"header"`
	Parameter map[string][]string `json:"parameter"`
}

// Context builds the oracle context from a session. A nil session yields
// empty, non-nil maps.
func Context(s *Session) DetectorContext {
	ctx := DetectorContext{
		Header:    map[string]string{},
		Parameter: map[string][]string{},
	}
	if s == nil {
		return ctx
	}

	for name, value := range s.Headers {
		ctx.Header[name] = value
	}
	for name, raw := range s.QueryParams {
		if values, ok := parameterValues(raw); ok {
			ctx.Parameter[name] = values
		}
	}
	return ctx
}

func parameterValues(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case string:
		return []string{v}, true
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}
