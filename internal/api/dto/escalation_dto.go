package dto

import (
	"time"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// EscalateRequest payload for a manual escalation.
type EscalateRequest struct {
	Reason     string  `json:"reason"`
	Priority   *string `json:"priority"`
	TargetRole *string `json:"target_role"`
}

// StatusChangeRequest payload.
type StatusChangeRequest struct {
	Status string `json:"status"`
}

// IssueResponse is the admin view of an issue.
type IssueResponse struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	ReporterID      string               `json:"reporter_id"`
	Priority        domain.IssuePriority `json:"priority"`
	Status          domain.IssueStatus   `json:"status"`
	City            string               `json:"city,omitempty"`
	Cluster         string               `json:"cluster,omitempty"`
	AssigneeID      *string              `json:"assignee_id"`
	EscalationLevel int                  `json:"escalation_level"`
	EscalationCount int                  `json:"escalation_count"`
	EscalatedAt     *time.Time           `json:"escalated_at"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ClosedAt        *time.Time           `json:"closed_at"`
	ReopenedAt      *time.Time           `json:"reopened_at"`
	ReopenCount     int                  `json:"reopen_count"`
}

// NewIssueResponse maps a domain issue.
func NewIssueResponse(issue *domain.Issue) IssueResponse {
	return IssueResponse{
		ID:              issue.ID,
		Title:           issue.Title,
		ReporterID:      issue.ReporterID,
		Priority:        issue.Priority,
		Status:          issue.Status,
		City:            issue.City,
		Cluster:         issue.Cluster,
		AssigneeID:      issue.AssigneeID,
		EscalationLevel: issue.EscalationLevel,
		EscalationCount: issue.EscalationCount,
		EscalatedAt:     issue.EscalatedAt,
		CreatedAt:       issue.CreatedAt,
		UpdatedAt:       issue.UpdatedAt,
		ClosedAt:        issue.ClosedAt,
		ReopenedAt:      issue.ReopenedAt,
		ReopenCount:     len(issue.PriorClosures),
	}
}

// TickResponse summarises a tick.
type TickResponse struct {
	Evaluated  int   `json:"evaluated"`
	Escalated  int   `json:"escalated"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	DurationMS int64 `json:"duration_ms"`
}

// MetricsResponse is the escalation dashboard payload.
type MetricsResponse struct {
	TotalEscalations   int            `json:"total_escalations"`
	ByLevel            map[string]int `json:"by_level"`
	AvgResolutionHours float64        `json:"avg_resolution_hours"`
	OpenAgeBuckets     map[string]int `json:"open_age_buckets"`
}

// AuditEntryResponse is one ledger entry.
type AuditEntryResponse struct {
	ID             string         `json:"id"`
	IssueID        string         `json:"issue_id"`
	ActorID        string         `json:"actor_id"`
	Action         string         `json:"action"`
	PreviousStatus *string        `json:"previous_status"`
	NewStatus      *string        `json:"new_status"`
	Detail         map[string]any `json:"detail,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewAuditEntryResponses maps ledger entries.
func NewAuditEntryResponses(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:             e.ID,
			IssueID:        e.IssueID,
			ActorID:        e.ActorID,
			Action:         string(e.Action),
			PreviousStatus: e.PreviousStatus,
			NewStatus:      e.NewStatus,
			Detail:         e.Detail,
			CreatedAt:      e.CreatedAt,
		})
	}
	return out
}
