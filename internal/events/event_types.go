package events

import (
	"time"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// Kind enumerates notification kinds.
type Kind string

const (
	KindIssueEscalated     Kind = "issue_escalated"
	KindIssueReassigned    Kind = "issue_reassigned"
	KindIssueStatusChanged Kind = "issue_status_changed"
	KindIssueReopened      Kind = "issue_reopened"
)

// Recipient is a resolved notification target.
type Recipient struct {
	UserID string      `json:"user_id"`
	Name   string      `json:"name,omitempty"`
	Email  string      `json:"email,omitempty"`
	Role   domain.Role `json:"role"`
}

// Event is a notification handed to subscribers.
type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	IssueID    string         `json:"issue_id"`
	Recipients []Recipient    `json:"recipients"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload"`
}

// Emails returns the non-empty recipient addresses.
func (e Event) Emails() []string {
	out := make([]string, 0, len(e.Recipients))
	seen := make(map[string]struct{}, len(e.Recipients))
	for _, r := range e.Recipients {
		if r.Email == "" {
			continue
		}
		if _, dup := seen[r.Email]; dup {
			continue
		}
		seen[r.Email] = struct{}{}
		out = append(out, r.Email)
	}
	return out
}
