package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/edvin/deployhub/internal/activity"
	"github.com/edvin/deployhub/internal/adapter"
	"github.com/edvin/deployhub/internal/config"
	"github.com/edvin/deployhub/internal/db"
	"github.com/edvin/deployhub/internal/logging"
	"github.com/edvin/deployhub/internal/metrics"
	"github.com/edvin/deployhub/internal/orchestrator"
	"github.com/edvin/deployhub/internal/registry"
	"github.com/edvin/deployhub/internal/scheduler"
	"github.com/edvin/deployhub/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	tc, err := temporalclient.Dial(temporalclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	services := registry.NewServices(pool)
	adapters := adapter.NewFactory(cfg, logger)
	orch := orchestrator.NewService(
		services.Template, services.Instance, services.Execution, adapters,
		cfg.OperationTimeout, logger)
	monitor := orchestrator.NewMonitor(
		services.Instance, services.Template, services.Health, adapters,
		cfg.OperationTimeout,
		time.Duration(cfg.HealthRecordRetentionDays)*24*time.Hour,
		logger)

	w := worker.New(tc, scheduler.TaskQueue, worker.Options{})

	w.RegisterActivity(activity.NewOperations(orch, monitor))

	w.RegisterWorkflow(workflow.ScheduledOperationWorkflow)
	w.RegisterWorkflow(workflow.HealthSweepWorkflow)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", scheduler.TaskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Register the health sweep schedule. Errors for already-existing
	// schedules are ignored so that re-deploys do not fail.
	registerHealthSweep(ctx, tc, cfg, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

func registerHealthSweep(ctx context.Context, tc temporalclient.Client, cfg *config.Config, logger zerolog.Logger) {
	const id = "health-sweep-cron"

	_, err := tc.ScheduleClient().Create(ctx, temporalclient.ScheduleOptions{
		ID: id,
		Spec: temporalclient.ScheduleSpec{
			CronExpressions: []string{cfg.HealthSweepCron},
		},
		Action: &temporalclient.ScheduleWorkflowAction{
			ID:        id,
			Workflow:  workflow.HealthSweepWorkflow,
			TaskQueue: scheduler.TaskQueue,
		},
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") {
			logger.Info().Str("id", id).Msg("cron schedule already exists, skipping")
		} else {
			logger.Fatal().Err(err).Str("id", id).Msg("failed to create cron schedule")
		}
	} else {
		logger.Info().Str("id", id).Str("cron", cfg.HealthSweepCron).Msg("created cron schedule")
	}
}
