package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/raspd/raspd/internal/config"
	"github.com/raspd/raspd/internal/detect"
	"github.com/raspd/raspd/internal/heartbeat"
	"github.com/raspd/raspd/internal/logging"
	"github.com/raspd/raspd/internal/observability"
	"github.com/raspd/raspd/internal/policy"
	"github.com/raspd/raspd/internal/report"
	"github.com/raspd/raspd/internal/rules"
	"github.com/raspd/raspd/internal/server"
	"github.com/raspd/raspd/internal/session"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var noSync bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the raspd agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, func(cfg *config.Config) {
				if noSync {
					cfg.Sync.Disable()
				}
			})
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			defer func() { _ = logger.Sync() }()
			return runAgent(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Disable the backend heartbeat and keep bootstrap rules")

	return cmd
}

// agent holds the process-wide components. Each one is built once and
// injected where needed.
type agent struct {
	store     *rules.Store
	registry  *rules.Registry
	reports   *report.Cache
	sessions  *session.Registry
	server    *server.Server
	scheduler *heartbeat.Scheduler
}

func buildAgent(cfg *config.Config, logger *logging.Logger, metrics *observability.Metrics) (*agent, error) {
	store, registry, err := rules.BuildStore(cfg)
	if err != nil {
		return nil, err
	}
	thresholds, err := policy.NewThresholds(cfg.Severity.Minor, cfg.Severity.Major)
	if err != nil {
		return nil, err
	}

	reports := report.NewCache()
	sessions := session.NewRegistry(cfg.Sessions.Capacity, cfg.Sessions.TTL)

	regex := detect.NewRegexDetector(store, registry, reports)
	regex.SetMetrics(metrics)
	regex.SetLogger(logger.Named("regexp"))

	sqli := detect.NewSQLiDetector(store, reports, sessions, newOracle(cfg.SQLi), thresholds)
	sqli.SetMetrics(metrics)
	sqli.SetLogger(logger.Named("sqli"))

	srv := server.New(detect.NewDispatcher(regex, sqli), sessions, store)
	srv.SetLogger(logger.Named("api"))

	a := &agent{
		store:    store,
		registry: registry,
		reports:  reports,
		sessions: sessions,
		server:   srv,
	}

	if cfg.Sync.IsEnabled() {
		client := heartbeat.NewClient(cfg.Backend, logger.Named("backend"))
		a.scheduler = heartbeat.NewScheduler(client, store, reports, cfg.Sync.Interval)
		a.scheduler.SetAgentID(cfg.Agent.ID)
		a.scheduler.SetMetrics(metrics)
		a.scheduler.SetLogger(logger.Named("heartbeat"))
	}
	metrics.ObserveRuleSync("bootstrap", store.Len())

	return a, nil
}

func newOracle(cfg config.SQLiConfig) detect.Oracle {
	switch cfg.Oracle {
	case config.OracleLibinjection:
		return detect.LibinjectionOracle{Confidence: float64(cfg.Confidence)}
	default:
		return detect.NopOracle{}
	}
}

func runAgent(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	var metrics *observability.Metrics
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = observability.NewMetrics(reg)
		metricsSrv = startMetricsServer(cfg.Metrics.Listen, metrics, reg, logger)
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
	}

	a, err := buildAgent(cfg, logger, metrics)
	if err != nil {
		return err
	}

	if cfg.Logging.ReportJournal != "" && a.scheduler != nil {
		journal, closer, err := logging.OpenReportJournal(cfg.ResolvePath(cfg.Logging.ReportJournal))
		if err != nil {
			return fmt.Errorf("open report journal: %w", err)
		}
		defer func() { _ = closer() }()
		a.scheduler.SetJournal(journal)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()
	logger.Info("detector api listening", "addr", cfg.Server.Listen, "rules", a.store.Len(), "regexps", a.registry.Len())

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.scheduler != nil {
		a.scheduler.Start(signalCtx)
		defer a.scheduler.Stop()
	}

	select {
	case <-signalCtx.Done():
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("shutdown complete", "pending_reports", a.reports.Len())
	return nil
}

func startMetricsServer(listen string, metrics *observability.Metrics, reg *prometheus.Registry, logger *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return srv
}
