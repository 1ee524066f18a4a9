package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/grievance-service/internal/api/http/handlers"
	"github.com/spec-kit/grievance-service/internal/auth"
	"github.com/spec-kit/grievance-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Escalations    *handlers.EscalationHandler
	Issues         *handlers.IssuesHandler
	Audit          *handlers.AuditHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	supervisors := auth.RequireRole(domain.RoleManager, domain.RoleAdmin)

	admin.Post("/escalations/tick", supervisors, cfg.Escalations.Tick)
	admin.Get("/escalations/metrics", supervisors, cfg.Escalations.Metrics)
	admin.Post("/issues/:id/escalate", supervisors, cfg.Escalations.Escalate)

	admin.Post("/issues/:id/status", cfg.Issues.ChangeStatus)
	admin.Post("/issues/:id/reopen", cfg.Issues.Reopen)

	admin.Get("/issues/:id/audit", cfg.Audit.IssueHistory)
	admin.Get("/actors/:id/audit", supervisors, cfg.Audit.ActorHistory)
}
