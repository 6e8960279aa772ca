package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	detectionsTotal     *prometheus.CounterVec
	detectDuration      *prometheus.HistogramVec
	reportsFlushedTotal prometheus.Counter
	reportsLostTotal    prometheus.Counter
	heartbeatsTotal     *prometheus.CounterVec
	ruleSyncTotal       *prometheus.CounterVec
	rulesActive         prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		detectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "raspd_detections_total", Help: "Total detector matches"},
			[]string{"detector", "rule_id", "action"},
		),
		detectDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "raspd_detect_duration_seconds",
				Help:    "Detector evaluation duration in seconds",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
			[]string{"detector"},
		),
		reportsFlushedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "raspd_reports_flushed_total", Help: "Total reports drained into heartbeats"},
		),
		reportsLostTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "raspd_reports_lost_total", Help: "Total flushed reports whose heartbeat failed"},
		),
		heartbeatsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "raspd_heartbeats_total", Help: "Total heartbeat attempts"},
			[]string{"result"},
		),
		ruleSyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "raspd_rule_sync_total", Help: "Total rule sync payloads by outcome"},
			[]string{"outcome"},
		),
		rulesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "raspd_rules_active", Help: "Rules currently held by the store"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.detectionsTotal,
		m.detectDuration,
		m.reportsFlushedTotal,
		m.reportsLostTotal,
		m.heartbeatsTotal,
		m.ruleSyncTotal,
		m.rulesActive,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveDetection(detector, ruleID, action string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.detectDuration.WithLabelValues(detector).Observe(elapsed.Seconds())
	if action != "" && action != "none" {
		m.detectionsTotal.WithLabelValues(detector, ruleID, action).Inc()
	}
}

func (m *Metrics) ObserveHeartbeat(result string, flushed int, delivered bool) {
	if m == nil {
		return
	}
	m.heartbeatsTotal.WithLabelValues(result).Inc()
	m.reportsFlushedTotal.Add(float64(flushed))
	if !delivered {
		m.reportsLostTotal.Add(float64(flushed))
	}
}

func (m *Metrics) ObserveRuleSync(outcome string, active int) {
	if m == nil {
		return
	}
	m.ruleSyncTotal.WithLabelValues(outcome).Inc()
	m.rulesActive.Set(float64(active))
}
