package handlers

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/escalation"
	"github.com/spec-kit/grievance-service/internal/service"
	apperrors "github.com/spec-kit/grievance-service/pkg/util"
)

// mapServiceError turns engine sentinels into API errors.
func mapServiceError(err error, issueID string) error {
	details := map[string]any{"issue_id": issueID}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("issue", details)
	case errors.Is(err, escalation.ErrIssueTerminal):
		return apperrors.NewConflict("issue is resolved or closed", details)
	case errors.Is(err, service.ErrEscalationSuperseded), errors.Is(err, service.ErrIssueChanged):
		return apperrors.NewConflict("issue changed concurrently, retry", details)
	case errors.Is(err, service.ErrReopenWindowExpired):
		return apperrors.NewConflict("reopen window expired", details)
	case errors.Is(err, service.ErrInvalidTransition):
		return apperrors.NewValidationError(err.Error(), details)
	case errors.Is(err, domain.ErrThresholdMissing):
		return apperrors.NewUnprocessable("CONFIGURATION_GAP", "no escalation threshold for issue priority", details)
	default:
		return apperrors.MapError(err)
	}
}
