package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/escalation"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/repository"
	"github.com/spec-kit/grievance-service/internal/repository/memory"
	"github.com/spec-kit/grievance-service/internal/sla"
)

var testNow = time.Date(2024, time.April, 10, 12, 0, 0, 0, time.UTC)

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }

type sentNotification struct {
	Kind       events.Kind
	Recipients []events.Recipient
	Payload    map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, kind events.Kind, recipients []events.Recipient, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotification{Kind: kind, Recipients: recipients, Payload: payload})
	return nil
}

func (n *recordingNotifier) kinds() []events.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]events.Kind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

// failingAudit fails every Create.
type failingAudit struct {
	repository.AuditRepository
}

func (failingAudit) Create(context.Context, *domain.AuditEntry) error { return errBoom }

// failingIssueWrites fails every UpdateIssue.
type failingIssueWrites struct {
	repository.IssueRepository
}

func (failingIssueWrites) UpdateIssue(context.Context, string, domain.IssuePatch, domain.UpdateGuard) (bool, error) {
	return false, errBoom
}

// tickingClock advances one second per call so ledger entries order strictly.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(time.Second)
		return now
	}
}

type fixture struct {
	store    *memory.Store
	machine  *escalation.Machine
	ledger   *AuditLedger
	balancer *WorkloadBalancer
	notifier *recordingNotifier
	service  *EscalationService
}

type fixtureOption func(*EscalationDependencies)

func withIssues(repo repository.IssueRepository) fixtureOption {
	return func(d *EscalationDependencies) { d.Issues = repo }
}

func withLedger(l *AuditLedger) fixtureOption {
	return func(d *EscalationDependencies) { d.Ledger = l }
}

func newTestMachine(t *testing.T) *escalation.Machine {
	t.Helper()
	calc, err := sla.NewCalculator(sla.BusinessHours{
		StartHour: 0,
		EndHour:   24,
		Weekdays: []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		},
		Location: time.UTC,
	})
	require.NoError(t, err)
	thresholds, err := domain.NewThresholdTable(
		domain.EscalationThreshold{Priority: domain.IssuePriorityLow, Hours: 72, TargetRole: domain.RoleAgent},
		domain.EscalationThreshold{Priority: domain.IssuePriorityMedium, Hours: 48, TargetRole: domain.RoleAgent},
		domain.EscalationThreshold{Priority: domain.IssuePriorityHigh, Hours: 12, TargetRole: domain.RoleManager},
		domain.EscalationThreshold{Priority: domain.IssuePriorityCritical, Hours: 4, TargetRole: domain.RoleAdmin},
	)
	require.NoError(t, err)
	machine, err := escalation.NewMachine(escalation.DefaultPolicy(thresholds, calc))
	require.NoError(t, err)
	return machine
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	store.PutUser(domain.User{ID: "reporter", Name: "Ravi", Email: "ravi@example.com", Role: domain.RoleEmployee, Active: true})
	store.PutUser(domain.User{ID: "agent-1", Name: "Asha", Email: "asha@example.com", Role: domain.RoleAgent, Active: true})
	store.PutUser(domain.User{ID: "manager-1", Name: "Mira", Email: "mira@example.com", Role: domain.RoleManager, Active: true})
	store.PutUser(domain.User{ID: "admin-1", Name: "Dev", Email: "dev@example.com", Role: domain.RoleAdmin, Active: true})

	ledger := NewAuditLedger(store.Audit(), logger)
	ledger.now = tickingClock(testNow)

	f := &fixture{
		store:    store,
		machine:  newTestMachine(t),
		ledger:   ledger,
		balancer: NewWorkloadBalancer(store.Users(), nil, 1, logger),
		notifier: &recordingNotifier{},
	}
	deps := EscalationDependencies{
		Machine:  f.machine,
		Issues:   store.Issues(),
		Users:    store.Users(),
		Ledger:   f.ledger,
		Balancer: f.balancer,
		Notifier: f.notifier,
		Logger:   logger,
		Clock:    func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.service = NewEscalationService(deps)
	return f
}

func (f *fixture) addIssue(issue domain.Issue) domain.Issue {
	if issue.Status == "" {
		issue.Status = domain.IssueStatusOpen
	}
	if issue.ReporterID == "" {
		issue.ReporterID = "reporter"
	}
	f.store.PutIssue(issue)
	return issue
}

func (f *fixture) history(t *testing.T, issueID string) []domain.AuditEntry {
	t.Helper()
	entries, err := f.ledger.History(context.Background(), domain.AuditQuery{IssueID: issueID})
	require.NoError(t, err)
	return entries
}

func actions(entries []domain.AuditEntry) []domain.AuditAction {
	out := make([]domain.AuditAction, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i].Action)
	}
	return out
}
