package escalation

import "github.com/spec-kit/grievance-service/internal/domain"

// MaxLevel is the terminal escalation depth.
const MaxLevel = 3

// State is the escalation variant of an issue, derived from its fields.
type State int

const (
	StateFresh State = iota
	StateEscalatedL1
	StateEscalatedL2
	StateEscalatedL3
	StateClosed
)

var stateNames = map[State]string{
	StateFresh:       "fresh",
	StateEscalatedL1: "escalated_l1",
	StateEscalatedL2: "escalated_l2",
	StateEscalatedL3: "escalated_l3",
	StateClosed:      "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// DeriveState reconstructs the variant from (status, escalation_level).
func DeriveState(issue *domain.Issue) State {
	if issue.Status.IsTerminal() {
		return StateClosed
	}
	switch {
	case issue.EscalationLevel <= 0:
		return StateFresh
	case issue.EscalationLevel == 1:
		return StateEscalatedL1
	case issue.EscalationLevel == 2:
		return StateEscalatedL2
	default:
		return StateEscalatedL3
	}
}

func stateForLevel(level int) State {
	return DeriveState(&domain.Issue{Status: domain.IssueStatusOpen, EscalationLevel: level})
}
