package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raspd/raspd/internal/normalize"
	"github.com/raspd/raspd/internal/policy"
	"github.com/raspd/raspd/internal/report"
	"github.com/raspd/raspd/internal/rules"
	"github.com/raspd/raspd/internal/session"
)

type fixture struct {
	store    *rules.Store
	registry *rules.Registry
	cache    *report.Cache
	sessions *session.Registry
}

func newFixture(t *testing.T, seed ...rules.Rule) fixture {
	t.Helper()
	registry := rules.NewRegistry()
	require.NoError(t, registry.Replace([]rules.Definition{
		{ID: "xss", Value: `(?i)<script\b`},
		{ID: "traversal", Value: `\.\./`},
	}))
	store := rules.NewStore(registry)
	store.ReplaceRules(seed)
	return fixture{
		store:    store,
		registry: registry,
		cache:    report.NewCache(),
		sessions: session.NewRegistry(16, time.Minute),
	}
}

func TestCheckRegexpBlock(t *testing.T) {
	f := newFixture(t, rules.Rule{ID: "xss-1", IsEnabled: true, ShouldBlock: true, RegExps: []string{"xss"}})
	d := NewRegexDetector(f.store, f.registry, f.cache)

	data := d.CheckRegexp(Event{Context: "xss-1", Args: []any{"hello", "<SCRIPT>alert(1)</script>"}})

	assert.Equal(t, policy.ActionBlock, data.Action)
	assert.Equal(t, MessageBlocked, data.Message)

	reports := f.cache.Flush()
	require.Len(t, reports, 1)
	assert.Equal(t, report.TypeBlock, reports[0].Type)
	assert.Equal(t, "xss-1", reports[0].RuleID)
	assert.Equal(t, "regexp", reports[0].Detector)
}

func TestCheckRegexpAlertKeepsDetectedMessage(t *testing.T) {
	f := newFixture(t, rules.Rule{ID: "xss-1", IsEnabled: true, ShouldBlock: false, RegExps: []string{"xss"}})
	d := NewRegexDetector(f.store, f.registry, f.cache)

	data := d.CheckRegexp(Event{Context: "xss-1", Args: []any{"<script>"}})

	assert.Equal(t, policy.ActionAlert, data.Action)
	assert.Equal(t, MessageDetected, data.Message)

	reports := f.cache.Flush()
	require.Len(t, reports, 1)
	assert.Equal(t, report.TypeAlert, reports[0].Type)
	assert.Equal(t, MessageDetected, reports[0].Message)
}

func TestCheckRegexpNoRule(t *testing.T) {
	f := newFixture(t,
		rules.Rule{ID: "off", IsEnabled: false, ShouldBlock: true, RegExps: []string{"xss"}},
	)
	d := NewRegexDetector(f.store, f.registry, f.cache)

	for _, ctx := range []string{"unknown", "off"} {
		data := d.CheckRegexp(Event{Context: ctx, Args: []any{"<script>"}, Message: "original"})
		assert.Equal(t, policy.ActionNone, data.Action, ctx)
		assert.Equal(t, "original", data.Message, ctx)
	}
	assert.Equal(t, 0, f.cache.Len())
}

func TestCheckRegexpSkipsNonStringArgs(t *testing.T) {
	f := newFixture(t, rules.Rule{ID: "fs-1", IsEnabled: true, ShouldBlock: true, RegExps: []string{"missing", "traversal"}})
	d := NewRegexDetector(f.store, f.registry, f.cache)

	data := d.CheckRegexp(Event{Context: "fs-1", Args: []any{42.0, []any{"../etc"}, map[string]any{"p": "../"}, nil}})
	assert.Equal(t, policy.ActionNone, data.Action)
	assert.Equal(t, 0, f.cache.Len())

	data = d.CheckRegexp(Event{Context: "fs-1", Args: []any{42.0, "../../etc/passwd", "../again"}})
	assert.Equal(t, policy.ActionBlock, data.Action)
	assert.Equal(t, 1, f.cache.Len(), "first match short-circuits")
}

func TestSetActionIsOneWay(t *testing.T) {
	data := NewRuntimeData(Event{})
	data.SetAlert()
	data.SetBlock()
	assert.Equal(t, policy.ActionAlert, data.Action)
	assert.Empty(t, data.Message)

	data = NewRuntimeData(Event{})
	data.SetBlock()
	data.SetAlert()
	assert.Equal(t, policy.ActionBlock, data.Action)
	assert.Equal(t, MessageBlocked, data.Message)
}

func TestDetectSQLiEndToEnd(t *testing.T) {
	f := newFixture(t, rules.Rule{ID: "sqli-1", IsEnabled: true, ShouldBlock: true})
	f.sessions.Put("s1", &normalize.Session{
		Headers:     map[string]string{"host": "shop.example.com"},
		QueryParams: map[string]any{"id": "' OR 1=1"},
		SourceIP:    "203.0.113.7",
		Path:        "/products",
	})

	var seen normalize.DetectorContext
	oracle := OracleFunc(func(query string, stack []string, ctx normalize.DetectorContext) []Finding {
		seen = ctx
		return []Finding{{Name: "tautology", Message: "SQLi detected", Confidence: 95}}
	})
	d := NewSQLiDetector(f.store, f.cache, f.sessions, oracle, policy.DefaultThresholds())

	data := d.DetectSQLi(SQLEvent{Context: "sqli-1", Data: SQLEventData{Query: "' OR 1=1", SessionID: "s1", CallStack: []string{"db.go:10"}}})

	assert.Equal(t, policy.ActionBlock, data.Action)
	assert.Equal(t, float64(95), data.Confidence)
	assert.Equal(t, SQLParams{Query: "' OR 1=1", Stack: []string{"db.go:10"}}, data.Params())
	assert.Equal(t, []string{"' OR 1=1"}, seen.Parameter["id"])
	assert.Equal(t, "shop.example.com", seen.Header["host"])

	reports := f.cache.Flush()
	require.Len(t, reports, 1)
	rep := reports[0]
	assert.Equal(t, report.TypeBlock, rep.Type)
	assert.Equal(t, string(policy.SeverityCritical), rep.Severity)
	assert.Equal(t, "tautology", rep.Name)
	assert.Equal(t, "SQLi detected", rep.Message)
	assert.Equal(t, "203.0.113.7", rep.SourceIP)
	assert.Equal(t, "/products", rep.Path)
	assert.Equal(t, "sqli-1", rep.RuleID)
}

func TestDetectSQLiAlertAndSeverity(t *testing.T) {
	f := newFixture(t, rules.Rule{ID: "sqli-1", IsEnabled: true, ShouldBlock: false})
	oracle := OracleFunc(func(string, []string, normalize.DetectorContext) []Finding {
		return []Finding{{Name: "stacked", Message: "m", Confidence: 60}, {Name: "ignored", Confidence: 100}}
	})
	d := NewSQLiDetector(f.store, f.cache, f.sessions, oracle, policy.DefaultThresholds())

	data := d.DetectSQLi(SQLEvent{Context: "sqli-1", Data: SQLEventData{Query: "select 1", SessionID: "unknown"}})
	assert.Equal(t, policy.ActionAlert, data.Action)

	reports := f.cache.Flush()
	require.Len(t, reports, 1)
	assert.Equal(t, string(policy.SeverityMinor), reports[0].Severity)
	assert.Equal(t, "stacked", reports[0].Name)
	assert.Empty(t, reports[0].SourceIP)
}

func TestDetectSQLiNoFindingsOrRule(t *testing.T) {
	f := newFixture(t, rules.Rule{ID: "sqli-1", IsEnabled: true, ShouldBlock: true})
	calls := 0
	oracle := OracleFunc(func(string, []string, normalize.DetectorContext) []Finding {
		calls++
		return nil
	})
	d := NewSQLiDetector(f.store, f.cache, f.sessions, oracle, policy.DefaultThresholds())

	data := d.DetectSQLi(SQLEvent{Context: "sqli-1", Data: SQLEventData{Query: "select 1"}})
	assert.Equal(t, policy.ActionNone, data.Action)

	data = d.DetectSQLi(SQLEvent{Context: "other", Data: SQLEventData{Query: "select 1"}})
	assert.Equal(t, policy.ActionNone, data.Action)

	assert.Equal(t, 1, calls, "oracle is not consulted without a rule")
	assert.Equal(t, 0, f.cache.Len())
}

func TestLibinjectionOracle(t *testing.T) {
	oracle := LibinjectionOracle{Confidence: 95}
	ctx := normalize.Context(&normalize.Session{QueryParams: map[string]any{
		"id":   "1' OR '1'='1",
		"name": "alice",
	}})

	findings := oracle.Detect("SELECT * FROM users WHERE id = '1' OR '1'='1' AND name = 'alice'", nil, ctx)
	require.Len(t, findings, 1)
	assert.Equal(t, "libinjection", findings[0].Name)
	assert.Contains(t, findings[0].Message, `"id"`)
	assert.Equal(t, float64(95), findings[0].Confidence)

	assert.Empty(t, oracle.Detect("SELECT 1", nil, ctx), "inputs absent from the query are ignored")
}
