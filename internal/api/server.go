package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/deployhub/internal/adapter"
	"github.com/edvin/deployhub/internal/api/handler"
	mw "github.com/edvin/deployhub/internal/api/middleware"
	"github.com/edvin/deployhub/internal/config"
	"github.com/edvin/deployhub/internal/orchestrator"
	"github.com/edvin/deployhub/internal/registry"
	"github.com/edvin/deployhub/internal/scheduler"
)

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *registry.Services
	orch           *orchestrator.Service
	monitor        *orchestrator.Monitor
	bridge         *scheduler.Bridge
	pool           *pgxpool.Pool
	temporalClient temporalclient.Client
	cfg            *config.Config
	auditLogger    *mw.AuditLogger
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, temporalClient temporalclient.Client, cfg *config.Config) *Server {
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
	bridge := scheduler.NewBridge(temporalClient.ScheduleClient(), logger)
	auditLogger := mw.NewAuditLogger(pool, logger)

	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		orch:           orch,
		monitor:        monitor,
		bridge:         bridge,
		pool:           pool,
		temporalClient: temporalClient,
		cfg:            cfg,
		auditLogger:    auditLogger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Actor)
		r.Use(s.auditLogger.Middleware)

		// Templates
		template := handler.NewTemplate(s.services.Template)
		r.Get("/templates", template.List)
		r.Post("/templates", template.Create)
		r.Get("/templates/{id}", template.Get)
		r.Put("/templates/{id}", template.Update)
		r.Delete("/templates/{id}", template.Delete)
		r.Post("/templates/{id}/activate", template.SetActive(true))
		r.Post("/templates/{id}/deactivate", template.SetActive(false))

		// Instances and lifecycle operations
		instance := handler.NewInstance(s.orch, s.monitor,
			s.services.Instance, s.services.Execution, s.services.Health)
		r.Get("/instances", instance.List)
		r.Post("/instances", instance.Provision)
		r.Get("/instances/{id}", instance.Get)
		r.Post("/instances/{id}/upgrade", instance.Upgrade)
		r.Post("/instances/{id}/scale", instance.Scale)
		r.Post("/instances/{id}/suspend", instance.Suspend)
		r.Post("/instances/{id}/resume", instance.Resume)
		r.Post("/instances/{id}/destroy", instance.Destroy)
		r.Post("/instances/{id}/rollback", instance.Rollback)
		r.Post("/instances/{id}/health-check", instance.HealthCheck)
		r.Get("/instances/{id}/executions", instance.Executions)
		r.Get("/instances/{id}/health", instance.HealthHistory)

		// Executions
		r.Get("/executions/{id}", instance.GetExecution)

		// Schedules
		schedule := handler.NewSchedule(s.bridge, s.services.Instance)
		r.Post("/schedules", schedule.Create)
		r.Get("/schedules", schedule.List)
		r.Delete("/schedules/{id}", schedule.Delete)
		r.Post("/schedules/{id}/pause", schedule.Pause)
		r.Post("/schedules/{id}/unpause", schedule.Unpause)

		// Stats
		stats := handler.NewStats(s.services.Stats)
		r.Get("/stats", stats.Overview)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

// Close stops the async audit writer.
func (s *Server) Close() {
	s.auditLogger.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
