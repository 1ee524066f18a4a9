package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-service/internal/api/dto"
	"github.com/spec-kit/grievance-service/internal/auth"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/service"
	apperrors "github.com/spec-kit/grievance-service/pkg/util"
)

// IssuesHandler handles staff lifecycle actions on issues.
type IssuesHandler struct {
	lifecycle *service.LifecycleService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(lifecycle *service.LifecycleService) *IssuesHandler {
	return &IssuesHandler{lifecycle: lifecycle}
}

// ChangeStatus POST /admin/issues/:id/status.
func (h *IssuesHandler) ChangeStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.StatusChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status := domain.IssueStatus(req.Status)
	if !status.Valid() {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": req.Status})
	}

	issueID := c.Params("id")
	issue, err := h.lifecycle.ChangeStatus(c.UserContext(), issueID, status, principal.User.ID)
	if err != nil {
		return mapServiceError(err, issueID)
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue)})
}

// Reopen POST /admin/issues/:id/reopen.
func (h *IssuesHandler) Reopen(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	issueID := c.Params("id")
	issue, err := h.lifecycle.Reopen(c.UserContext(), issueID, principal.User.ID)
	if err != nil {
		return mapServiceError(err, issueID)
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue)})
}
