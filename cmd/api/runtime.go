package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/escalation"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/persistence"
	"github.com/spec-kit/grievance-service/internal/repository"
	"github.com/spec-kit/grievance-service/internal/repository/memory"
	"github.com/spec-kit/grievance-service/internal/service"
	"github.com/spec-kit/grievance-service/internal/worker"
)

// runtime holds the wired engine shared by serve and tick.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger

	postgres *persistence.Postgres
	redis    *persistence.Redis
	mirror   *persistence.KafkaAuditMirror

	issues repository.IssueRepository
	users  repository.UserRepository

	dispatcher    *events.AsyncDispatcher
	notifications *service.NotificationService
	ledger        *service.AuditLedger
	escalations   *service.EscalationService
	lifecycle     *service.LifecycleService
	scheduler     *worker.EscalationScheduler
}

// buildRuntime connects storage and wires the services. Without a Postgres DSN
// the in-memory store is used, optionally loaded from seedPath.
func buildRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger, seedPath string) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	policy, err := cfg.EscalationPolicy()
	if err != nil {
		return nil, fmt.Errorf("escalation policy: %w", err)
	}
	machine, err := escalation.NewMachine(policy)
	if err != nil {
		return nil, fmt.Errorf("escalation machine: %w", err)
	}
	rank, err := cfg.Escalation.RoleRankMap()
	if err != nil {
		return nil, fmt.Errorf("role rank: %w", err)
	}

	var audit repository.AuditRepository
	if cfg.Postgres.DSN != "" {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.postgres = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pool := pg.PoolHandle()
		rt.issues = repository.NewIssueRepository(pool)
		rt.users = repository.NewUserRepository(pool)
		audit = repository.NewAuditRepository(pool)
	} else {
		logger.Warn("POSTGRES_DSN not provided; using in-memory store")
		store := memory.NewStore()
		if seedPath != "" {
			if err := store.LoadSeedFile(seedPath); err != nil {
				return nil, err
			}
		}
		rt.issues = store.Issues()
		rt.users = store.Users()
		audit = store.Audit()
	}

	if r, err := persistence.ConnectRedis(ctx, cfg.Redis, logger); err == nil {
		rt.redis = r
	}

	var mirrors []service.AuditMirror
	if m := persistence.NewKafkaAuditMirror(cfg.Kafka, logger); m != nil {
		rt.mirror = m
		mirrors = append(mirrors, m)
	}
	rt.ledger = service.NewAuditLedger(audit, logger, mirrors...)

	channels := []service.Channel{service.NewLogChannel(logger)}
	if mail := service.NewMailChannel(cfg.Notification, logger); mail != nil {
		channels = append(channels, mail)
	}
	var lease worker.Lease
	if rt.redis.Enabled() {
		if ch := service.NewRedisChannel(rt.redis.Cmdable(), cfg.Notification.RedisChannel); ch != nil {
			channels = append(channels, ch)
		}
		lease = worker.NewRedisLease(rt.redis.Cmdable(), cfg.Escalation.LeaseTTL)
	}
	rt.dispatcher = events.NewAsyncDispatcher(cfg.Notification.QueueSize, cfg.Notification.Workers, logger)
	rt.notifications = service.NewNotificationService(rt.dispatcher, logger, channels...)

	balancer := service.NewWorkloadBalancer(rt.users, rank, cfg.Escalation.BalancerSeed, logger)
	rt.escalations = service.NewEscalationService(service.EscalationDependencies{
		Machine:  machine,
		Issues:   rt.issues,
		Users:    rt.users,
		Ledger:   rt.ledger,
		Balancer: balancer,
		Notifier: rt.notifications,
		Logger:   logger,
	})
	rt.lifecycle = service.NewLifecycleService(service.LifecycleDependencies{
		Issues:       rt.issues,
		Users:        rt.users,
		Ledger:       rt.ledger,
		Notifier:     rt.notifications,
		ReopenWindow: cfg.Escalation.ReopenWindow,
		Logger:       logger,
	})
	rt.scheduler = worker.NewEscalationScheduler(rt.escalations, lease, cfg.Escalation.TickInterval, logger)
	return rt, nil
}

// Close releases connections.
func (rt *runtime) Close() {
	if rt.mirror != nil {
		if err := rt.mirror.Close(); err != nil {
			rt.logger.Warn("close audit mirror", zap.Error(err))
		}
	}
	rt.redis.Close()
	rt.postgres.Close()
}
