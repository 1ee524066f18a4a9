package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/observability"
	"github.com/spec-kit/grievance-service/internal/service"
)

// TickSummary reports one pass over the open issues.
type TickSummary struct {
	Evaluated int           `json:"evaluated"`
	Escalated int           `json:"escalated"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// EscalationScheduler periodically evaluates every open issue.
type EscalationScheduler struct {
	escalations *service.EscalationService
	lease       Lease
	interval    time.Duration
	logger      *zap.Logger
}

// NewEscalationScheduler creates the scheduler. A nil lease means every tick runs.
func NewEscalationScheduler(escalations *service.EscalationService, lease Lease, interval time.Duration, logger *zap.Logger) *EscalationScheduler {
	if lease == nil {
		lease = alwaysLease{}
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &EscalationScheduler{
		escalations: escalations,
		lease:       lease,
		interval:    interval,
		logger:      logger.Named("scheduler"),
	}
}

// EvaluateTick evaluates all open issues, most urgent and oldest first. A
// failing issue is counted and the batch continues; only listing errors fail
// the tick.
func (s *EscalationScheduler) EvaluateTick(ctx context.Context) (TickSummary, error) {
	start := time.Now()
	var summary TickSummary

	issues, err := s.escalations.Issues().FindOpenIssues(ctx, domain.OrderPriorityDescAgeAsc)
	if err != nil {
		observability.EscalationTicks.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("list open issues: %w", err)
	}

	for _, issue := range issues {
		summary.Evaluated++
		decision, err := s.escalations.Evaluate(ctx, issue)
		switch {
		case errors.Is(err, domain.ErrThresholdMissing):
			summary.Skipped++
			s.logger.Warn("no threshold for priority",
				zap.String("issue_id", issue.ID),
				zap.String("priority", string(issue.Priority)))
		case errors.Is(err, service.ErrEscalationSuperseded):
			summary.Skipped++
		case err != nil:
			summary.Failed++
			s.logger.Error("escalation failed", zap.String("issue_id", issue.ID), zap.Error(err))
		case decision.Escalate:
			summary.Escalated++
		}
	}

	summary.Duration = time.Since(start)
	observability.TickIssuesEvaluated.Add(float64(summary.Evaluated))
	observability.EscalationTickDuration.Observe(summary.Duration.Seconds())
	observability.EscalationTicks.WithLabelValues("completed").Inc()

	s.logger.Info("escalation tick completed",
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("escalated", summary.Escalated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// Run ticks every interval until ctx is done. A tick that has started runs to
// completion even if ctx is cancelled meanwhile.
func (s *EscalationScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("escalation scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("escalation scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one lease-guarded pass and reports whether it ran.
func (s *EscalationScheduler) tick(ctx context.Context) bool {
	held, err := s.lease.Acquire(ctx)
	if err != nil {
		s.logger.Warn("tick lease unavailable, running anyway", zap.Error(err))
		held = true
	}
	if !held {
		observability.EscalationTicks.WithLabelValues("skipped_lease").Inc()
		s.logger.Debug("tick lease held by another replica")
		return false
	}
	if _, err := s.EvaluateTick(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("escalation tick failed", zap.Error(err))
	}
	return true
}

// EscalateNow forces an escalation for one issue.
func (s *EscalationScheduler) EscalateNow(ctx context.Context, issueID string, opts service.EscalateOptions) (*domain.Issue, error) {
	return s.escalations.EscalateNow(ctx, issueID, opts)
}

// Metrics returns aggregate escalation statistics.
func (s *EscalationScheduler) Metrics(ctx context.Context, filter domain.MetricsFilter) (domain.EscalationStats, error) {
	return s.escalations.Metrics(ctx, filter)
}
