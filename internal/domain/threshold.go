package domain

import (
	"errors"
	"fmt"
)

// ErrThresholdMissing is returned when no threshold exists for a priority.
var ErrThresholdMissing = errors.New("escalation threshold missing")

// EscalationThreshold is the per-priority time budget.
type EscalationThreshold struct {
	Priority   IssuePriority
	Hours      float64
	TargetRole Role
}

// ThresholdTable maps priorities to their thresholds.
type ThresholdTable map[IssuePriority]EscalationThreshold

// NewThresholdTable builds a table, rejecting duplicate or invalid entries.
func NewThresholdTable(entries ...EscalationThreshold) (ThresholdTable, error) {
	table := make(ThresholdTable, len(entries))
	for _, entry := range entries {
		if !entry.Priority.Valid() {
			return nil, fmt.Errorf("threshold for unknown priority %q", entry.Priority)
		}
		if entry.Hours <= 0 {
			return nil, fmt.Errorf("threshold for %s must be positive, got %v", entry.Priority, entry.Hours)
		}
		if !entry.TargetRole.Valid() || entry.TargetRole == RoleEmployee {
			return nil, fmt.Errorf("threshold for %s has invalid target role %q", entry.Priority, entry.TargetRole)
		}
		if _, dup := table[entry.Priority]; dup {
			return nil, fmt.Errorf("duplicate threshold for %s", entry.Priority)
		}
		table[entry.Priority] = entry
	}
	return table, nil
}

// Lookup returns the threshold for p or ErrThresholdMissing.
func (t ThresholdTable) Lookup(p IssuePriority) (EscalationThreshold, error) {
	threshold, ok := t[p]
	if !ok {
		return EscalationThreshold{}, fmt.Errorf("%w: priority %q", ErrThresholdMissing, p)
	}
	return threshold, nil
}

// Validate fails when any of the given priorities has no entry.
func (t ThresholdTable) Validate(priorities ...IssuePriority) error {
	var errs []error
	for _, p := range priorities {
		if _, err := t.Lookup(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
