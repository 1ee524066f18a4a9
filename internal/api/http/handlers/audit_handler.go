package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-service/internal/api/dto"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/service"
	apperrors "github.com/spec-kit/grievance-service/pkg/util"
)

// AuditHandler serves ledger history.
type AuditHandler struct {
	ledger *service.AuditLedger
}

// NewAuditHandler constructs handler.
func NewAuditHandler(ledger *service.AuditLedger) *AuditHandler {
	return &AuditHandler{ledger: ledger}
}

// IssueHistory GET /admin/issues/:id/audit.
func (h *AuditHandler) IssueHistory(c *fiber.Ctx) error {
	return h.history(c, domain.AuditQuery{IssueID: c.Params("id")})
}

// ActorHistory GET /admin/actors/:id/audit.
func (h *AuditHandler) ActorHistory(c *fiber.Ctx) error {
	return h.history(c, domain.AuditQuery{ActorID: c.Params("id")})
}

func (h *AuditHandler) history(c *fiber.Ctx, q domain.AuditQuery) error {
	q.Limit = c.QueryInt("limit", 0)
	if q.Limit < 0 {
		return apperrors.NewValidationError("limit must be positive", nil)
	}
	entries, err := h.ledger.History(c.UserContext(), q)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewAuditEntryResponses(entries)})
}
