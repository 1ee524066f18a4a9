package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/observability"
	"github.com/spec-kit/grievance-service/internal/repository"
)

// DefaultReopenWindow is how long after closure an issue may be reopened.
const DefaultReopenWindow = 7 * 24 * time.Hour

var (
	// ErrReopenWindowExpired is returned when an issue closed too long ago is reopened.
	ErrReopenWindowExpired = errors.New("reopen window expired")
	// ErrInvalidTransition is returned for status moves the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrIssueChanged is returned when a guarded write lost to a concurrent change.
	ErrIssueChanged = errors.New("issue changed concurrently")
)

// LifecycleService moves issues between statuses outside of escalation.
type LifecycleService struct {
	issues       repository.IssueRepository
	users        repository.UserRepository
	ledger       *AuditLedger
	notifier     Notifier
	reopenWindow time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// LifecycleDependencies bundles collaborators.
type LifecycleDependencies struct {
	Issues       repository.IssueRepository
	Users        repository.UserRepository
	Ledger       *AuditLedger
	Notifier     Notifier
	ReopenWindow time.Duration
	Logger       *zap.Logger
	Clock        func() time.Time
}

// NewLifecycleService creates the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	window := deps.ReopenWindow
	if window <= 0 {
		window = DefaultReopenWindow
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &LifecycleService{
		issues:       deps.Issues,
		users:        deps.Users,
		ledger:       deps.Ledger,
		notifier:     notifier,
		reopenWindow: window,
		logger:       logger.Named("lifecycle"),
		now:          clock,
	}
}

// ChangeStatus moves an issue to status. Closed and resolved issues only move
// between each other; use Reopen to bring them back.
func (s *LifecycleService) ChangeStatus(ctx context.Context, issueID string, status domain.IssueStatus, actorID string) (*domain.Issue, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("load issue %s: %w", issueID, err)
	}
	if issue.Status == status {
		return issue, nil
	}
	if issue.Status.IsTerminal() && !status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s to %s requires reopen", ErrInvalidTransition, issue.Status, status)
	}

	now := s.now()
	patch := domain.IssuePatch{Status: &status}
	guard := domain.UpdateGuard{RequireOpen: true}
	if issue.Status.IsTerminal() {
		guard = domain.UpdateGuard{RequireTerminal: true}
	} else if status.IsTerminal() {
		patch.ClosedAt = &now
	}

	ok, err := s.issues.UpdateIssue(ctx, issueID, patch, guard)
	if err != nil {
		return nil, fmt.Errorf("update issue %s: %w", issueID, err)
	}
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", issueID, ErrIssueChanged)
	}

	prev, next := string(issue.Status), string(status)
	s.record(ctx, domain.AuditEntry{
		IssueID:        issueID,
		ActorID:        actorID,
		Action:         domain.AuditActionStatusChanged,
		PreviousStatus: &prev,
		NewStatus:      &next,
	})

	patch.Apply(issue)
	s.notify(ctx, events.KindIssueStatusChanged, issue, map[string]any{
		"issue_id":        issue.ID,
		"title":           issue.Title,
		"previous_status": prev,
		"new_status":      next,
	})
	return issue, nil
}

// Reopen returns a resolved or closed issue to open within the reopen window.
// The escalation level restarts at zero; the escalation count is kept.
func (s *LifecycleService) Reopen(ctx context.Context, issueID, actorID string) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("load issue %s: %w", issueID, err)
	}
	if !issue.Status.IsTerminal() || issue.ClosedAt == nil {
		return nil, fmt.Errorf("%w: issue %s is %s", ErrInvalidTransition, issueID, issue.Status)
	}

	now := s.now()
	if now.Sub(*issue.ClosedAt) > s.reopenWindow {
		return nil, fmt.Errorf("issue %s closed at %s: %w", issueID, issue.ClosedAt.Format(time.RFC3339), ErrReopenWindowExpired)
	}

	open := domain.IssueStatusOpen
	level := 0
	patch := domain.IssuePatch{
		Status:           &open,
		EscalationLevel:  &level,
		ClearEscalatedAt: true,
		ClearClosedAt:    true,
		ReopenedAt:       &now,
		PriorClosures:    append(append([]time.Time{}, issue.PriorClosures...), *issue.ClosedAt),
	}
	ok, err := s.issues.UpdateIssue(ctx, issueID, patch, domain.UpdateGuard{RequireTerminal: true})
	if err != nil {
		return nil, fmt.Errorf("reopen issue %s: %w", issueID, err)
	}
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", issueID, ErrIssueChanged)
	}

	prev, next := string(issue.Status), string(open)
	s.record(ctx, domain.AuditEntry{
		IssueID:        issueID,
		ActorID:        actorID,
		Action:         domain.AuditActionReopened,
		PreviousStatus: &prev,
		NewStatus:      &next,
		Detail: map[string]any{
			"closed_at":        issue.ClosedAt.UTC().Format(time.RFC3339),
			"previous_level":   issue.EscalationLevel,
			"escalation_count": issue.EscalationCount,
			"reopen_count":     len(patch.PriorClosures),
		},
	})

	patch.Apply(issue)
	s.notify(ctx, events.KindIssueReopened, issue, map[string]any{
		"issue_id": issue.ID,
		"title":    issue.Title,
	})
	s.logger.Info("issue reopened", zap.String("issue_id", issueID), zap.String("actor", actorID))
	return issue, nil
}

func (s *LifecycleService) record(ctx context.Context, entry domain.AuditEntry) {
	if _, err := s.ledger.Record(ctx, entry); err != nil {
		observability.AuditWriteFailures.WithLabelValues("store").Inc()
		s.logger.Error("audit write failed",
			zap.String("issue_id", entry.IssueID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

func (s *LifecycleService) notify(ctx context.Context, kind events.Kind, issue *domain.Issue, payload map[string]any) {
	recipients := resolveRecipients(ctx, s.users, s.logger, nil, &issue.ReporterID, issue.AssigneeID)
	if err := s.notifier.Notify(ctx, kind, recipients, payload); err != nil {
		s.logger.Warn("notification dropped", zap.String("issue_id", issue.ID), zap.Error(err))
	}
}
