package escalation

import (
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/events"
)

// ErrIssueTerminal is returned when a resolved or closed issue is forced to escalate.
var ErrIssueTerminal = errors.New("issue is resolved or closed")

// Trigger describes who or what asked for an escalation.
type Trigger struct {
	Manual     bool
	ActorID    string
	Reason     string
	Priority   *domain.IssuePriority
	TargetRole *domain.Role
}

func (t Trigger) kind() string {
	if t.Manual {
		return "manual"
	}
	return "auto"
}

func (t Trigger) actor() string {
	if t.ActorID == "" {
		return domain.SystemActor
	}
	return t.ActorID
}

// Decision is the outcome of evaluating one issue.
type Decision struct {
	IssueID  string
	From     State
	To       State
	Escalate bool
	Reason   string
	AgeHours float64
	// Result is the issue as it looks once Effects are applied.
	Result  domain.Issue
	Effects []Effect
}

// Machine decides escalations. It performs no I/O.
type Machine struct {
	policy Policy
}

// NewMachine validates policy and builds a machine.
func NewMachine(policy Policy) (*Machine, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid escalation policy: %w", err)
	}
	return &Machine{policy: policy}, nil
}

// Policy returns the machine's policy.
func (m *Machine) Policy() Policy {
	return m.policy
}

// Evaluate runs the periodic transition rule for issue at now.
func (m *Machine) Evaluate(issue domain.Issue, now time.Time) (Decision, error) {
	state := DeriveState(&issue)
	decision := Decision{IssueID: issue.ID, From: state, To: state, Result: issue}

	if state == StateClosed {
		decision.Reason = "issue is resolved or closed"
		return decision, nil
	}

	threshold, err := m.policy.Thresholds.Lookup(issue.Priority)
	if err != nil {
		decision.Reason = "no threshold for priority"
		return decision, err
	}

	start := issue.ClockStart()
	decision.AgeHours = m.policy.Calculator.Business(start, now)

	switch state {
	case StateFresh:
		if decision.AgeHours < threshold.Hours {
			decision.Reason = "within threshold"
			return decision, nil
		}
		return m.escalate(issue, state, threshold, Trigger{}, decision.AgeHours, now), nil
	case StateEscalatedL1, StateEscalatedL2:
		if now.Sub(start) < m.policy.Cooldown {
			decision.Reason = "cooldown active"
			return decision, nil
		}
		if decision.AgeHours < m.policy.ReescalationBusinessHours {
			decision.Reason = "re-escalation window not reached"
			return decision, nil
		}
		return m.escalate(issue, state, threshold, Trigger{}, decision.AgeHours, now), nil
	default:
		decision.Reason = "maximum escalation level reached"
		return decision, nil
	}
}

// Force escalates issue regardless of age and cooldown.
func (m *Machine) Force(issue domain.Issue, trigger Trigger, now time.Time) (Decision, error) {
	state := DeriveState(&issue)
	if state == StateClosed {
		return Decision{IssueID: issue.ID, From: state, To: state, Result: issue}, ErrIssueTerminal
	}
	if trigger.Priority != nil && !trigger.Priority.Valid() {
		return Decision{}, fmt.Errorf("unknown priority %q", *trigger.Priority)
	}
	threshold, err := m.policy.Thresholds.Lookup(issue.Priority)
	if err != nil {
		return Decision{IssueID: issue.ID, From: state, To: state, Result: issue}, err
	}
	trigger.Manual = true
	age := m.policy.Calculator.Business(issue.ClockStart(), now)
	return m.escalate(issue, state, threshold, trigger, age, now), nil
}

func (m *Machine) escalate(issue domain.Issue, from State, threshold domain.EscalationThreshold, trigger Trigger, age float64, now time.Time) Decision {
	prevPriority := issue.Priority
	newPriority := prevPriority.Raise()
	if trigger.Priority != nil {
		newPriority = *trigger.Priority
	}
	prevLevel := issue.EscalationLevel
	newLevel := min(prevLevel+1, MaxLevel)
	newCount := issue.EscalationCount + 1
	escalatedAt := now

	patch := domain.IssuePatch{
		Priority:        &newPriority,
		EscalationLevel: &newLevel,
		EscalationCount: &newCount,
		EscalatedAt:     &escalatedAt,
	}
	guard := domain.UpdateGuard{
		RequireOpen: true,
		ExpectLevel: &prevLevel,
		ExpectCount: &issue.EscalationCount,
	}
	if !trigger.Manual {
		guard.MaxLevel = MaxLevel
	}

	result := issue
	patch.Apply(&result)

	detail := map[string]any{
		"previous_level":     prevLevel,
		"new_level":          newLevel,
		"escalation_count":   newCount,
		"trigger":            trigger.kind(),
		"age_business_hours": age,
		"threshold_hours":    threshold.Hours,
	}
	if trigger.Reason != "" {
		detail["reason"] = trigger.Reason
	}
	prev, next := string(prevPriority), string(newPriority)

	effects := []Effect{
		UpdateIssue{IssueID: issue.ID, Patch: patch, Guard: guard},
		RecordAudit{Entry: domain.AuditEntry{
			IssueID:        issue.ID,
			ActorID:        trigger.actor(),
			Action:         domain.AuditActionEscalated,
			PreviousStatus: &prev,
			NewStatus:      &next,
			Detail:         detail,
		}},
	}
	if issue.AssigneeID == nil || trigger.TargetRole != nil {
		effects = append(effects, Reassign{
			IssueID:       issue.ID,
			Roles:         m.policy.rolesFor(newLevel, threshold, trigger),
			FallbackRoles: append([]domain.Role(nil), m.policy.FallbackRoles...),
			ActorID:       trigger.actor(),
			Level:         newLevel,
		})
	}
	effects = append(effects, Notify{
		Kind:           events.KindIssueEscalated,
		IssueID:        issue.ID,
		ReporterID:     issue.ReporterID,
		RecipientRoles: append([]domain.Role(nil), m.policy.NotifyRoles...),
		Payload: map[string]any{
			"issue_id":          issue.ID,
			"title":             issue.Title,
			"previous_priority": prev,
			"new_priority":      next,
			"level":             newLevel,
			"trigger":           trigger.kind(),
			"reason":            trigger.Reason,
		},
	})

	reason := fmt.Sprintf("escalated from %s to level %d", from, newLevel)
	return Decision{
		IssueID:  issue.ID,
		From:     from,
		To:       stateForLevel(newLevel),
		Escalate: true,
		Reason:   reason,
		AgeHours: age,
		Result:   result,
		Effects:  effects,
	}
}
