package domain

import "time"

// SystemActor is the actor id recorded for automatic decisions.
const SystemActor = "system"

// AuditAction tags what happened in an audit entry.
type AuditAction string

const (
	AuditActionEscalated            AuditAction = "escalated"
	AuditActionEscalationReassigned AuditAction = "escalation_reassigned"
	AuditActionAutoAssigned         AuditAction = "auto_assigned"
	AuditActionStatusChanged        AuditAction = "status_changed"
	AuditActionReopened             AuditAction = "reopened"
)

// AuditEntry is an immutable ledger record of a state-changing decision.
type AuditEntry struct {
	ID             string
	IssueID        string
	ActorID        string
	Action         AuditAction
	PreviousStatus *string
	NewStatus      *string
	Detail         map[string]any
	CreatedAt      time.Time
}

// AuditQuery selects ledger history by issue or by actor.
type AuditQuery struct {
	IssueID string
	ActorID string
	Limit   int
}
