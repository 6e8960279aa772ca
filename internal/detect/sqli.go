package detect

import (
	"time"

	"github.com/raspd/raspd/internal/logging"
	"github.com/raspd/raspd/internal/normalize"
	"github.com/raspd/raspd/internal/observability"
	"github.com/raspd/raspd/internal/policy"
	"github.com/raspd/raspd/internal/report"
	"github.com/raspd/raspd/internal/rules"
)

// SessionSource resolves a session id to the request context registered by
// the instrumentation. Unknown ids yield nil.
type SessionSource interface {
	Get(id string) *normalize.Session
}

type SQLiDetector struct {
	rules      *rules.Store
	reports    *report.Cache
	sessions   SessionSource
	oracle     Oracle
	thresholds policy.Thresholds
	metrics    *observability.Metrics
	logger     *logging.Logger
}

func NewSQLiDetector(store *rules.Store, reports *report.Cache, sessions SessionSource, oracle Oracle, thresholds policy.Thresholds) *SQLiDetector {
	if oracle == nil {
		oracle = NopOracle{}
	}
	return &SQLiDetector{
		rules:      store,
		reports:    reports,
		sessions:   sessions,
		oracle:     oracle,
		thresholds: thresholds,
		logger:     logging.Nop(),
	}
}

func (d *SQLiDetector) SetMetrics(metrics *observability.Metrics) {
	d.metrics = metrics
}

func (d *SQLiDetector) SetLogger(logger *logging.Logger) {
	d.logger = logger
}

// DetectSQLi asks the oracle about the query of the event. Only the first
// finding drives the verdict and the report.
func (d *SQLiDetector) DetectSQLi(e SQLEvent) *SQLData {
	start := time.Now()
	data := NewSQLData(e)
	defer func() {
		d.metrics.ObserveDetection(string(KindSQLi), data.Context, string(data.Action), time.Since(start))
	}()

	rule, ok := d.rules.Rule(e.Context)
	if !ok {
		return data
	}

	var session *normalize.Session
	if d.sessions != nil {
		session = d.sessions.Get(data.SessionID)
	}
	if session == nil {
		session = &normalize.Session{}
	}

	findings := d.oracle.Detect(data.Query, data.CallStack, normalize.Context(session))
	if len(findings) == 0 {
		return data
	}
	finding := findings[0]

	data.Confidence = finding.Confidence
	severity := d.thresholds.Severity(finding.Confidence)

	data.Message = MessageDetected
	action := policy.Decide(rule.ShouldBlock)
	data.Apply(action)

	d.reports.Push(report.New(report.Report{
		Type:      action.ReportType(),
		RuleID:    rule.ID,
		Detector:  string(KindSQLi),
		Name:      finding.Name,
		Severity:  string(severity),
		SourceIP:  session.SourceIP,
		Message:   finding.Message,
		Path:      session.Path,
		SessionID: data.SessionID,
	}))
	d.logger.Info("sql injection detected",
		"rule_id", rule.ID,
		"algorithm", finding.Name,
		"severity", severity,
		"action", data.Action,
	)

	return data
}
