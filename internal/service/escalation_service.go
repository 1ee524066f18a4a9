package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/escalation"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/observability"
	"github.com/spec-kit/grievance-service/internal/repository"
	"github.com/spec-kit/grievance-service/internal/sla"
)

// ErrEscalationSuperseded is returned when the issue changed between
// evaluation and write, so the escalation was not applied.
var ErrEscalationSuperseded = errors.New("escalation superseded by a concurrent change")

// EscalateOptions parameterises a manual escalation.
type EscalateOptions struct {
	Reason     string
	Actor      string
	Priority   *domain.IssuePriority
	TargetRole *domain.Role
}

// EscalationService applies escalation decisions against the stores.
type EscalationService struct {
	machine  *escalation.Machine
	issues   repository.IssueRepository
	users    repository.UserRepository
	ledger   *AuditLedger
	balancer *WorkloadBalancer
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// EscalationDependencies bundles collaborators.
type EscalationDependencies struct {
	Machine  *escalation.Machine
	Issues   repository.IssueRepository
	Users    repository.UserRepository
	Ledger   *AuditLedger
	Balancer *WorkloadBalancer
	Notifier Notifier
	Logger   *zap.Logger
	Clock    func() time.Time
}

// NewEscalationService creates the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
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
	return &EscalationService{
		machine:  deps.Machine,
		issues:   deps.Issues,
		users:    deps.Users,
		ledger:   deps.Ledger,
		balancer: deps.Balancer,
		notifier: notifier,
		logger:   logger.Named("escalation"),
		now:      clock,
	}
}

// Now returns the service clock.
func (s *EscalationService) Now() time.Time {
	return s.now()
}

// Issues exposes the issue store the service writes to.
func (s *EscalationService) Issues() repository.IssueRepository {
	return s.issues
}

// Evaluate runs the periodic rule for one issue and applies the decision.
func (s *EscalationService) Evaluate(ctx context.Context, issue domain.Issue) (escalation.Decision, error) {
	decision, err := s.machine.Evaluate(issue, s.now())
	if err != nil || !decision.Escalate {
		return decision, err
	}
	result, err := s.apply(ctx, decision, "auto")
	if err != nil {
		return decision, err
	}
	decision.Result = *result
	return decision, nil
}

// EscalateNow escalates issueID immediately, bypassing age and cooldown gates.
func (s *EscalationService) EscalateNow(ctx context.Context, issueID string, opts EscalateOptions) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("load issue %s: %w", issueID, err)
	}
	decision, err := s.machine.Force(*issue, escalation.Trigger{
		ActorID:    opts.Actor,
		Reason:     opts.Reason,
		Priority:   opts.Priority,
		TargetRole: opts.TargetRole,
	}, s.now())
	if err != nil {
		return nil, fmt.Errorf("escalate issue %s: %w", issueID, err)
	}
	return s.apply(ctx, decision, "manual")
}

// Metrics aggregates escalation statistics plus open-issue age buckets.
func (s *EscalationService) Metrics(ctx context.Context, filter domain.MetricsFilter) (domain.EscalationStats, error) {
	stats, err := s.issues.EscalationStats(ctx, filter)
	if err != nil {
		return domain.EscalationStats{}, fmt.Errorf("escalation stats: %w", err)
	}
	if stats.ByLevel == nil {
		stats.ByLevel = map[int]int{}
	}
	stats.AvgResolutionHours = sla.RoundHours(stats.AvgResolutionHours)

	open, err := s.issues.FindOpenIssues(ctx, domain.OrderCreatedAsc)
	if err != nil {
		return domain.EscalationStats{}, fmt.Errorf("open issues: %w", err)
	}
	calc := s.machine.Policy().Calculator
	now := s.now()
	stats.OpenAgeBuckets = map[string]int{
		string(sla.BucketUpTo14Days): 0,
		string(sla.Bucket15To30Days): 0,
		string(sla.BucketOver30Days): 0,
	}
	for _, issue := range open {
		if !filterMatches(issue, filter) {
			continue
		}
		stats.OpenAgeBuckets[string(calc.AgeBucket(issue.CreatedAt, now))]++
	}
	return stats, nil
}

func (s *EscalationService) apply(ctx context.Context, decision escalation.Decision, trigger string) (*domain.Issue, error) {
	result := decision.Result
	log := s.logger.With(zap.String("issue_id", decision.IssueID), zap.String("trigger", trigger))

	for _, eff := range decision.Effects {
		switch e := eff.(type) {
		case escalation.UpdateIssue:
			ok, err := s.issues.UpdateIssue(ctx, e.IssueID, e.Patch, e.Guard)
			if err != nil {
				return nil, fmt.Errorf("persist escalation for %s: %w", e.IssueID, err)
			}
			if !ok {
				log.Info("escalation superseded")
				return nil, fmt.Errorf("issue %s: %w", e.IssueID, ErrEscalationSuperseded)
			}
			observability.Escalations.WithLabelValues(strconv.Itoa(result.EscalationLevel), trigger).Inc()
			log.Info("issue escalated",
				zap.String("priority", string(result.Priority)),
				zap.Int("level", result.EscalationLevel))
		case escalation.RecordAudit:
			s.recordAudit(ctx, e.Entry)
		case escalation.Reassign:
			if assignee := s.reassign(ctx, e); assignee != nil {
				result.AssigneeID = &assignee.ID
			}
		case escalation.Notify:
			s.notify(ctx, e, result.AssigneeID)
		}
	}
	return &result, nil
}

func (s *EscalationService) reassign(ctx context.Context, eff escalation.Reassign) *domain.AssigneeCandidate {
	log := s.logger.With(zap.String("issue_id", eff.IssueID), zap.Int("level", eff.Level))

	outcome := "assigned"
	candidate, err := s.balancer.SelectAssignee(ctx, eff.Roles, true)
	if err == nil && candidate == nil && len(eff.FallbackRoles) > 0 {
		outcome = "fallback"
		candidate, err = s.balancer.SelectAssignee(ctx, eff.FallbackRoles, true)
	}
	if err != nil {
		log.Error("assignee lookup failed", zap.Error(err))
		return nil
	}
	if candidate == nil {
		observability.Assignments.WithLabelValues("none").Inc()
		log.Info("no eligible assignee", zap.Any("roles", eff.Roles))
		return nil
	}

	current, err := s.issues.GetByID(ctx, eff.IssueID)
	if err != nil {
		log.Error("reload issue for reassignment failed", zap.Error(err))
		return nil
	}
	ok, err := s.issues.UpdateIssue(ctx, eff.IssueID,
		domain.IssuePatch{AssigneeID: &candidate.ID},
		domain.UpdateGuard{RequireOpen: true})
	if err != nil {
		log.Error("assign issue failed", zap.Error(err))
		return nil
	}
	if !ok {
		log.Info("issue closed before reassignment")
		return nil
	}
	observability.Assignments.WithLabelValues(outcome).Inc()

	s.recordAudit(ctx, domain.AuditEntry{
		IssueID: eff.IssueID,
		ActorID: eff.ActorID,
		Action:  domain.AuditActionEscalationReassigned,
		Detail: map[string]any{
			"previous_assignee": current.AssigneeID,
			"new_assignee":      candidate.ID,
			"assignee_role":     string(candidate.Role),
			"open_count":        candidate.OpenCount,
			"level":             eff.Level,
			"fallback":          outcome == "fallback",
		},
	})

	recipient := events.Recipient{UserID: candidate.ID, Name: candidate.Name, Role: candidate.Role}
	if user, err := s.users.GetByID(ctx, candidate.ID); err == nil {
		recipient.Email = user.Email
	}
	if err := s.notifier.Notify(ctx, events.KindIssueReassigned, []events.Recipient{recipient}, map[string]any{
		"issue_id": eff.IssueID,
		"assignee": candidate.ID,
		"level":    eff.Level,
	}); err != nil {
		log.Warn("reassignment notification dropped", zap.Error(err))
	}

	log.Info("issue reassigned", zap.String("assignee", candidate.ID), zap.String("role", string(candidate.Role)))
	return candidate
}

func (s *EscalationService) recordAudit(ctx context.Context, entry domain.AuditEntry) {
	if _, err := s.ledger.Record(ctx, entry); err != nil {
		observability.AuditWriteFailures.WithLabelValues("store").Inc()
		s.logger.Error("audit write failed",
			zap.String("issue_id", entry.IssueID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

func (s *EscalationService) notify(ctx context.Context, eff escalation.Notify, assigneeID *string) {
	recipients := resolveRecipients(ctx, s.users, s.logger, eff.RecipientRoles, &eff.ReporterID, assigneeID)
	if err := s.notifier.Notify(ctx, eff.Kind, recipients, eff.Payload); err != nil {
		s.logger.Warn("escalation notification dropped",
			zap.String("issue_id", eff.IssueID),
			zap.Error(err))
	}
}

// resolveRecipients expands roles and individual user ids into recipients,
// skipping unknown users and duplicates.
func resolveRecipients(ctx context.Context, users repository.UserRepository, logger *zap.Logger, roles []domain.Role, userIDs ...*string) []events.Recipient {
	var recipients []events.Recipient
	seen := make(map[string]struct{})
	add := func(u domain.User) {
		if _, dup := seen[u.ID]; dup {
			return
		}
		seen[u.ID] = struct{}{}
		recipients = append(recipients, events.Recipient{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
	}

	if len(roles) > 0 {
		staff, err := users.ListByRole(ctx, roles)
		if err != nil {
			logger.Warn("resolve notification roles failed", zap.Error(err))
		}
		for _, u := range staff {
			add(u)
		}
	}
	for _, id := range userIDs {
		if id == nil || *id == "" {
			continue
		}
		u, err := users.GetByID(ctx, *id)
		if err != nil {
			logger.Debug("notification recipient not found", zap.String("user_id", *id), zap.Error(err))
			continue
		}
		add(*u)
	}
	return recipients
}

func filterMatches(issue domain.Issue, filter domain.MetricsFilter) bool {
	if filter.From != nil && issue.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && issue.CreatedAt.After(*filter.To) {
		return false
	}
	if filter.City != nil && issue.City != *filter.City {
		return false
	}
	if filter.Cluster != nil && issue.Cluster != *filter.Cluster {
		return false
	}
	return true
}
