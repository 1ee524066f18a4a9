package escalation

import (
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/events"
)

// Effect is a side effect a decision asks the caller to apply, in order.
type Effect interface {
	effect()
}

// UpdateIssue writes the new escalation fields to the issue store.
type UpdateIssue struct {
	IssueID string
	Patch   domain.IssuePatch
	Guard   domain.UpdateGuard
}

// RecordAudit appends an entry to the audit ledger.
type RecordAudit struct {
	Entry domain.AuditEntry
}

// Reassign asks the workload balancer for a new owner.
type Reassign struct {
	IssueID       string
	Roles         []domain.Role
	FallbackRoles []domain.Role
	ActorID       string
	Level         int
}

// Notify hands a notification to the external notifier.
type Notify struct {
	Kind           events.Kind
	IssueID        string
	ReporterID     string
	RecipientRoles []domain.Role
	Payload        map[string]any
}

func (UpdateIssue) effect() {}
func (RecordAudit) effect() {}
func (Reassign) effect()    {}
func (Notify) effect()      {}
