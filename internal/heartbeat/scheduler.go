package heartbeat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/raspd/raspd/internal/logging"
	"github.com/raspd/raspd/internal/observability"
	"github.com/raspd/raspd/internal/report"
	"github.com/raspd/raspd/internal/rules"
)

var ErrTickInFlight = errors.New("heartbeat already in flight")

// Poster delivers one heartbeat payload and returns the backend response.
type Poster interface {
	Post(ctx context.Context, payload Payload) ([]byte, error)
}

// Scheduler periodically drains the report cache into a heartbeat and feeds
// the backend response back into the rule store.
type Scheduler struct {
	poster   Poster
	store    *rules.Store
	reports  *report.Cache
	agentID  string
	interval time.Duration

	journal *logging.ReportJournal
	metrics *observability.Metrics
	logger  *logging.Logger

	inFlight sync.Mutex
	cron     *cron.Cron
}

func NewScheduler(poster Poster, store *rules.Store, reports *report.Cache, interval time.Duration) *Scheduler {
	return &Scheduler{
		poster:   poster,
		store:    store,
		reports:  reports,
		interval: interval,
		logger:   logging.Nop(),
	}
}

func (s *Scheduler) SetAgentID(id string) {
	s.agentID = id
}

func (s *Scheduler) SetJournal(journal *logging.ReportJournal) {
	s.journal = journal
}

func (s *Scheduler) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

func (s *Scheduler) SetLogger(logger *logging.Logger) {
	s.logger = logger
}

// Tick runs one heartbeat. Reports are flushed before the POST, so a failed
// delivery loses them. A tick that starts while another is running returns
// ErrTickInFlight without touching the cache.
func (s *Scheduler) Tick(ctx context.Context) error {
	if !s.inFlight.TryLock() {
		return ErrTickInFlight
	}
	defer s.inFlight.Unlock()

	reports := s.reports.Flush()
	if err := s.journal.Write(reports); err != nil {
		s.logger.Warn("report journal write failed", "error", err)
	}

	body, err := s.poster.Post(ctx, Payload{
		Hash:    s.store.Hash(),
		Reports: reports,
		AgentID: s.agentID,
	})
	if err != nil {
		s.metrics.ObserveHeartbeat("failed", len(reports), false)
		s.logger.Warn("heartbeat failed", "error", err, "reports_lost", len(reports))
		return err
	}
	s.metrics.ObserveHeartbeat("ok", len(reports), true)

	result := s.store.ApplyIncoming(body)
	s.metrics.ObserveRuleSync(string(result.Outcome), s.store.Len())
	if result.RegExpErr != nil {
		s.logger.Warn("regexp update rejected", "error", result.RegExpErr)
	}
	switch result.Outcome {
	case rules.SyncApplied:
		s.logger.Info("rules synced", "rules", result.Rules, "hash", s.store.Hash(), "reports", len(reports))
	case rules.SyncMalformed:
		s.logger.Warn("heartbeat response ignored", "reason", result.Reason)
	default:
		s.logger.Debug("rules retained", "reason", result.Reason, "reports", len(reports))
	}
	return nil
}

// Start schedules Tick every interval until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	l := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.Tick(ctx); errors.Is(err, ErrTickInFlight) {
			s.logger.Debug("heartbeat skipped", "reason", err)
		}
	}))
	s.cron.Start()
	s.logger.Info("heartbeat scheduler started", "interval", s.interval.String())
}

// Stop halts the schedule and waits for a running tick to return.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
