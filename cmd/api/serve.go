package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/grievance-service/internal/api/http"
	"github.com/spec-kit/grievance-service/internal/api/http/handlers"
	"github.com/spec-kit/grievance-service/internal/auth"
	"github.com/spec-kit/grievance-service/internal/observability"
	"github.com/spec-kit/grievance-service/internal/worker"
)

func newServeCommand() *cobra.Command {
	var seedPath string
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API, the escalation scheduler and the notification worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), seedPath, !noScheduler)
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML seed file for the in-memory store")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without the periodic tick")
	return cmd
}

func serve(parent context.Context, seedPath string, runScheduler bool) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, logger, seedPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	deps := map[string]handlers.Pinger{}
	if rt.postgres != nil {
		deps["postgres"] = rt.postgres
	}
	if rt.redis.Enabled() {
		deps["redis"] = rt.redis
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, observability.NewMetrics(), cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Escalations:    handlers.NewEscalationHandler(rt.scheduler),
		Issues:         handlers.NewIssuesHandler(rt.lifecycle),
		Audit:          handlers.NewAuditHandler(rt.ledger),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes), rt.users),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.StartNotificationWorker(gctx, rt.notifications, rt.dispatcher)
	})
	if runScheduler {
		g.Go(func() error {
			return rt.scheduler.Run(gctx)
		})
	}
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
