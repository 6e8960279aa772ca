package detect

import (
	"fmt"
	"sort"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/raspd/raspd/internal/normalize"
)

// Finding is one SQL injection verdict from an oracle. Confidence is 0..100.
type Finding struct {
	Name       string
	Message    string
	Confidence float64
}

// Oracle inspects a query issued by the application together with the
// request context that produced it.
type Oracle interface {
	Detect(query string, callStack []string, ctx normalize.DetectorContext) []Finding
}

type OracleFunc func(query string, callStack []string, ctx normalize.DetectorContext) []Finding

func (f OracleFunc) Detect(query string, callStack []string, ctx normalize.DetectorContext) []Finding {
	return f(query, callStack, ctx)
}

type NopOracle struct{}

func (NopOracle) Detect(string, []string, normalize.DetectorContext) []Finding {
	return nil
}

const minInputLen = 3

// LibinjectionOracle flags request parameters that are embedded verbatim in
// the query and that libinjection tokenizes as SQL injection.
type LibinjectionOracle struct {
	Confidence float64
}

func (o LibinjectionOracle) Detect(query string, _ []string, ctx normalize.DetectorContext) []Finding {
	names := make([]string, 0, len(ctx.Parameter))
	for name := range ctx.Parameter {
		names = append(names, name)
	}
	sort.Strings(names)

	var findings []Finding
	for _, name := range names {
		for _, value := range ctx.Parameter[name] {
			if len(value) < minInputLen || !strings.Contains(query, value) {
				continue
			}
			found, fingerprint := libinjection.IsSQLi(value)
			if !found {
				continue
			}
			findings = append(findings, Finding{
				Name:       "libinjection",
				Message:    fmt.Sprintf("SQL injection through parameter %q (fingerprint %s)", name, fingerprint),
				Confidence: o.Confidence,
			})
		}
	}
	return findings
}
