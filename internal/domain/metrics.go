package domain

import "time"

// MetricsFilter narrows escalation metrics.
type MetricsFilter struct {
	From    *time.Time
	To      *time.Time
	City    *string
	Cluster *string
}

// EscalationStats summarizes escalation activity.
type EscalationStats struct {
	TotalEscalations   int
	ByLevel            map[int]int
	AvgResolutionHours float64
	OpenAgeBuckets     map[string]int
}
