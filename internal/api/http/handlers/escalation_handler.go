package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-service/internal/api/dto"
	"github.com/spec-kit/grievance-service/internal/auth"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/service"
	"github.com/spec-kit/grievance-service/internal/worker"
	apperrors "github.com/spec-kit/grievance-service/pkg/util"
)

// EscalationHandler exposes the escalation engine to administrators.
type EscalationHandler struct {
	scheduler *worker.EscalationScheduler
}

// NewEscalationHandler constructs handler.
func NewEscalationHandler(scheduler *worker.EscalationScheduler) *EscalationHandler {
	return &EscalationHandler{scheduler: scheduler}
}

// Tick POST /admin/escalations/tick.
func (h *EscalationHandler) Tick(c *fiber.Ctx) error {
	summary, err := h.scheduler.EvaluateTick(c.UserContext())
	if err != nil {
		return apperrors.NewUnavailable("issue store unavailable")
	}
	return c.JSON(fiber.Map{"data": dto.TickResponse{
		Evaluated:  summary.Evaluated,
		Escalated:  summary.Escalated,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
		DurationMS: summary.Duration.Milliseconds(),
	}})
}

// Escalate POST /admin/issues/:id/escalate.
func (h *EscalationHandler) Escalate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.EscalateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	opts := service.EscalateOptions{Reason: req.Reason, Actor: principal.User.ID}
	if req.Priority != nil {
		p := domain.IssuePriority(*req.Priority)
		if !p.Valid() {
			return apperrors.NewValidationError("unknown priority", map[string]any{"priority": *req.Priority})
		}
		opts.Priority = &p
	}
	if req.TargetRole != nil {
		r := domain.Role(*req.TargetRole)
		if !r.Valid() || r == domain.RoleEmployee {
			return apperrors.NewValidationError("invalid target role", map[string]any{"target_role": *req.TargetRole})
		}
		opts.TargetRole = &r
	}

	issueID := c.Params("id")
	issue, err := h.scheduler.EscalateNow(c.UserContext(), issueID, opts)
	if err != nil {
		return mapServiceError(err, issueID)
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue)})
}

// Metrics GET /admin/escalations/metrics.
func (h *EscalationHandler) Metrics(c *fiber.Ctx) error {
	var filter domain.MetricsFilter
	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apperrors.NewValidationError("invalid "+key+", expected RFC3339", nil)
		}
		*dst = &t
	}
	if city := c.Query("city"); city != "" {
		filter.City = &city
	}
	if cluster := c.Query("cluster"); cluster != "" {
		filter.Cluster = &cluster
	}

	stats, err := h.scheduler.Metrics(c.UserContext(), filter)
	if err != nil {
		return apperrors.MapError(err)
	}
	byLevel := make(map[string]int, len(stats.ByLevel))
	for level, n := range stats.ByLevel {
		byLevel["level_"+strconv.Itoa(level)] = n
	}
	return c.JSON(fiber.Map{"data": dto.MetricsResponse{
		TotalEscalations:   stats.TotalEscalations,
		ByLevel:            byLevel,
		AvgResolutionHours: stats.AvgResolutionHours,
		OpenAgeBuckets:     stats.OpenAgeBuckets,
	}})
}
