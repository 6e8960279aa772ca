package detect

import (
	"time"

	"github.com/raspd/raspd/internal/logging"
	"github.com/raspd/raspd/internal/observability"
	"github.com/raspd/raspd/internal/policy"
	"github.com/raspd/raspd/internal/report"
	"github.com/raspd/raspd/internal/rules"
)

type RegexDetector struct {
	rules    *rules.Store
	registry *rules.Registry
	reports  *report.Cache
	metrics  *observability.Metrics
	logger   *logging.Logger
}

func NewRegexDetector(store *rules.Store, registry *rules.Registry, reports *report.Cache) *RegexDetector {
	return &RegexDetector{
		rules:    store,
		registry: registry,
		reports:  reports,
		logger:   logging.Nop(),
	}
}

func (d *RegexDetector) SetMetrics(metrics *observability.Metrics) {
	d.metrics = metrics
}

func (d *RegexDetector) SetLogger(logger *logging.Logger) {
	d.logger = logger
}

// CheckRegexp tests the string arguments of a call against the patterns of
// the rule named by the event context. Unknown or disabled rules leave the
// returned data untouched.
func (d *RegexDetector) CheckRegexp(e Event) *RuntimeData {
	start := time.Now()
	data := NewRuntimeData(e)
	defer func() {
		d.metrics.ObserveDetection(string(KindRegexp), data.Context, string(data.Action), time.Since(start))
	}()

	rule, ok := d.rules.Rule(e.Context)
	if !ok {
		return data
	}
	if !d.matches(rule, e.Args) {
		return data
	}

	data.Message = MessageDetected
	action := policy.Decide(rule.ShouldBlock)
	data.Apply(action)

	d.reports.Push(report.New(report.Report{
		Type:     action.ReportType(),
		RuleID:   rule.ID,
		Detector: string(KindRegexp),
		Message:  data.Message,
	}))
	d.logger.Info("regexp rule matched", "rule_id", rule.ID, "action", data.Action)

	return data
}

// matches stops at the first pattern that hits any string argument.
func (d *RegexDetector) matches(rule rules.Rule, args []any) bool {
	for _, id := range rule.RegExps {
		re, ok := d.registry.Resolve(id)
		if !ok {
			d.logger.Debug("unknown regexp id", "rule_id", rule.ID, "regexp_id", id)
			continue
		}
		for _, arg := range args {
			value, ok := arg.(string)
			if !ok {
				continue
			}
			if re.MatchString(value) {
				return true
			}
		}
	}
	return false
}
