package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/crmflow/crm-automation/internal/api/http"
	"github.com/crmflow/crm-automation/internal/api/http/handlers"
	"github.com/crmflow/crm-automation/internal/auth"
	"github.com/crmflow/crm-automation/internal/config"
	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/events"
	"github.com/crmflow/crm-automation/internal/kafka"
	"github.com/crmflow/crm-automation/internal/observability"
	"github.com/crmflow/crm-automation/internal/persistence"
	"github.com/crmflow/crm-automation/internal/repository"
	"github.com/crmflow/crm-automation/internal/service"
)

// application holds the wired components and the resources to release.
type application struct {
	http     *fiber.App
	sla      *service.SLAService
	postgres *persistence.Postgres
	redis    *persistence.Redis
	producer *kafka.Producer
	logger   *zap.Logger
}

// Close releases external connections.
func (a *application) Close() {
	if err := a.producer.Close(); err != nil {
		a.logger.Warn("close kafka producer", zap.Error(err))
	}
	a.redis.Close()
	a.postgres.Close()
}

type repositories struct {
	tickets  repository.TicketRepository
	audits   repository.AuditLogRepository
	timeline repository.TimelineRepository
	rules    repository.AssignmentRuleRepository
	sla      repository.SLAConfigRepository
}

func buildApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, err
		}
	}
	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	producer := kafka.NewProducer(cfg.Kafka, logger)

	app := &application{postgres: pg, redis: redis, producer: producer, logger: logger}
	repos := buildRepositories(pg)
	metrics := observability.NewMetrics()

	cursor := redis.AssignmentCursor()
	locker := redis.SweepLock()

	recorder := service.NewRecorder(service.RecorderDependencies{
		AuditRepo:    repos.audits,
		TimelineRepo: repos.timeline,
		Logger:       logger,
	})
	outbox := service.NewNotificationService(producer, logger)
	executor := service.NewActionExecutor(service.ExecutorDependencies{
		Notifications: outbox,
		Tasks:         outbox,
		Email:         outbox,
		Meetings:      outbox,
		Assignments:   outbox,
		Deals:         outbox,
		Retry: service.NewBackoffRetry(
			cfg.Workflow.ActionRetryMax,
			time.Duration(cfg.Workflow.ActionRetryBaseMS)*time.Millisecond,
		),
		Timeout: cfg.Workflow.ActionTimeout(),
		Metrics: metrics,
		Logger:  logger,
	})
	dispatcher := events.NewDispatcher(events.DispatcherDependencies{
		Executor: executor,
		Timeline: recorder,
		Sink:     producer,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err := registerTriggers(dispatcher, cfg.Workflow, logger); err != nil {
		app.Close()
		return nil, err
	}

	slaService, err := service.NewSLAService(service.SLADependencies{
		Config: domain.SLAConfig{
			Critical: cfg.Workflow.SLACriticalHours,
			High:     cfg.Workflow.SLAHighHours,
			Medium:   cfg.Workflow.SLAMediumHours,
			Low:      cfg.Workflow.SLALowHours,
		},
		ConfigRepo: repos.sla,
		TicketRepo: repos.tickets,
		Recorder:   recorder,
		Dispatcher: dispatcher,
		Locker:     locker,
		LockTTL:    cfg.Workflow.SweepLockTTL(),
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("configure SLA: %w", err)
	}
	if err := slaService.LoadStoredConfig(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.sla = slaService

	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		RuleRepo:  repos.rules,
		Cursor:    cursor,
		AgentPool: cfg.Workflow.AgentPool,
		Logger:    logger,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repos.tickets,
		Recorder:   recorder,
		SLA:        slaService,
		Assignment: assignment,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	eventService := service.NewEventService(dispatcher, recorder, logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, tokens, logger)

	app.http = fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app.http, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app.http, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Events:         handlers.NewEventsHandler(eventService),
		Admin:          handlers.NewAdminHandler(slaService, assignment),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return app, nil
}

func buildRepositories(pg *persistence.Postgres) repositories {
	if !pg.Enabled() {
		store := repository.NewMemoryStore()
		return repositories{
			tickets:  store.Tickets(),
			audits:   store.AuditLogs(),
			timeline: store.Timeline(),
			rules:    store.AssignmentRules(),
			sla:      store.SLAConfig(),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		tickets:  repository.NewTicketRepository(pool),
		audits:   repository.NewAuditLogRepository(pool),
		timeline: repository.NewTimelineRepository(pool),
		rules:    repository.NewAssignmentRuleRepository(pool),
		sla:      repository.NewSLAConfigRepository(pool),
	}
}

func registerTriggers(dispatcher events.Dispatcher, cfg config.WorkflowConfig, logger *zap.Logger) error {
	if !cfg.DisableDefaults {
		events.RegisterAll(dispatcher, events.DefaultTriggers())
	}
	if cfg.TriggersFile == "" {
		return nil
	}
	triggers, err := events.LoadTriggersFile(cfg.TriggersFile)
	if err != nil {
		return fmt.Errorf("load triggers: %w", err)
	}
	events.RegisterAll(dispatcher, triggers)
	logger.Info("loaded trigger definitions",
		zap.String("file", cfg.TriggersFile),
		zap.Int("count", len(triggers)))
	return nil
}
