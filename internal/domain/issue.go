package domain

import "time"

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusResolved   IssueStatus = "resolved"
	IssueStatusClosed     IssueStatus = "closed"
)

// IsTerminal reports whether no further escalation can happen in this status.
func (s IssueStatus) IsTerminal() bool {
	return s == IssueStatusResolved || s == IssueStatusClosed
}

// Valid reports whether s is a known status.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusResolved, IssueStatusClosed:
		return true
	}
	return false
}

// IssuePriority enumerates SLA urgency.
type IssuePriority string

const (
	IssuePriorityLow      IssuePriority = "low"
	IssuePriorityMedium   IssuePriority = "medium"
	IssuePriorityHigh     IssuePriority = "high"
	IssuePriorityCritical IssuePriority = "critical"
)

// Priorities lists every priority from least to most urgent.
var Priorities = []IssuePriority{
	IssuePriorityLow,
	IssuePriorityMedium,
	IssuePriorityHigh,
	IssuePriorityCritical,
}

// Rank returns the ordinal of the priority, 0 for unknown values.
func (p IssuePriority) Rank() int {
	for i, candidate := range Priorities {
		if candidate == p {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether p is a known priority.
func (p IssuePriority) Valid() bool {
	return p.Rank() > 0
}

// Raise returns the next priority step. Critical stays critical.
func (p IssuePriority) Raise() IssuePriority {
	rank := p.Rank()
	if rank == 0 || rank >= len(Priorities) {
		return p
	}
	return Priorities[rank]
}

// Issue is the grievance aggregate the escalation engine evaluates.
type Issue struct {
	ID              string
	Title           string
	ReporterID      string
	Priority        IssuePriority
	Status          IssueStatus
	City            string
	Cluster         string
	AssigneeID      *string
	EscalationLevel int
	EscalationCount int
	EscalatedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
	ReopenedAt      *time.Time
	PriorClosures   []time.Time
}

// ClockStart returns the instant SLA time is measured from.
func (i *Issue) ClockStart() time.Time {
	if i.EscalatedAt != nil {
		return *i.EscalatedAt
	}
	if i.ReopenedAt != nil {
		return *i.ReopenedAt
	}
	return i.CreatedAt
}

// IssuePatch carries the subset of fields the engine may change. Nil means unchanged.
type IssuePatch struct {
	Priority         *IssuePriority
	Status           *IssueStatus
	EscalationLevel  *int
	EscalationCount  *int
	EscalatedAt      *time.Time
	ClearEscalatedAt bool
	AssigneeID       *string
	ClosedAt         *time.Time
	ClearClosedAt    bool
	ReopenedAt       *time.Time
	PriorClosures    []time.Time
}

// Empty reports whether the patch changes nothing.
func (p IssuePatch) Empty() bool {
	return p.Priority == nil && p.Status == nil && p.EscalationLevel == nil &&
		p.EscalationCount == nil && p.EscalatedAt == nil && !p.ClearEscalatedAt &&
		p.AssigneeID == nil && p.ClosedAt == nil && !p.ClearClosedAt &&
		p.ReopenedAt == nil && p.PriorClosures == nil
}

// Apply copies the patch onto issue.
func (p IssuePatch) Apply(issue *Issue) {
	if p.Priority != nil {
		issue.Priority = *p.Priority
	}
	if p.Status != nil {
		issue.Status = *p.Status
	}
	if p.EscalationLevel != nil {
		issue.EscalationLevel = *p.EscalationLevel
	}
	if p.EscalationCount != nil {
		issue.EscalationCount = *p.EscalationCount
	}
	if p.EscalatedAt != nil {
		at := *p.EscalatedAt
		issue.EscalatedAt = &at
	}
	if p.ClearEscalatedAt {
		issue.EscalatedAt = nil
	}
	if p.AssigneeID != nil {
		id := *p.AssigneeID
		issue.AssigneeID = &id
	}
	if p.ClosedAt != nil {
		at := *p.ClosedAt
		issue.ClosedAt = &at
	}
	if p.ClearClosedAt {
		issue.ClosedAt = nil
	}
	if p.ReopenedAt != nil {
		at := *p.ReopenedAt
		issue.ReopenedAt = &at
	}
	if p.PriorClosures != nil {
		issue.PriorClosures = append([]time.Time(nil), p.PriorClosures...)
	}
}

// UpdateGuard makes an issue write conditional on the row's current state.
type UpdateGuard struct {
	RequireOpen     bool
	RequireTerminal bool
	// MaxLevel, when positive, requires escalation_level < MaxLevel.
	MaxLevel int
	// ExpectLevel and ExpectCount pin the escalation state the write was
	// computed from; a row that moved on rejects the write.
	ExpectLevel *int
	ExpectCount *int
}

// Allows reports whether the guard accepts the current issue state.
func (g UpdateGuard) Allows(issue *Issue) bool {
	if g.RequireOpen && issue.Status.IsTerminal() {
		return false
	}
	if g.RequireTerminal && !issue.Status.IsTerminal() {
		return false
	}
	if g.MaxLevel > 0 && issue.EscalationLevel >= g.MaxLevel {
		return false
	}
	if g.ExpectLevel != nil && issue.EscalationLevel != *g.ExpectLevel {
		return false
	}
	if g.ExpectCount != nil && issue.EscalationCount != *g.ExpectCount {
		return false
	}
	return true
}

// IssueOrder selects the ordering of open-issue scans.
type IssueOrder int

const (
	// OrderPriorityDescAgeAsc evaluates critical-and-oldest first.
	OrderPriorityDescAgeAsc IssueOrder = iota
	OrderCreatedAsc
)
