// Package memory provides in-process implementations of the repositories,
// used when no database is configured and in tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository"
)

var (
	_ repository.IssueRepository = (*IssueRepository)(nil)
	_ repository.UserRepository  = (*UserRepository)(nil)
	_ repository.AuditRepository = (*AuditRepository)(nil)
)

// Store holds issues, users and audit entries behind one lock.
type Store struct {
	mu     sync.RWMutex
	issues map[string]domain.Issue
	users  map[string]domain.User
	order  []string
	audit  []domain.AuditEntry
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		issues: make(map[string]domain.Issue),
		users:  make(map[string]domain.User),
		now:    time.Now,
	}
}

// PutIssue inserts or replaces an issue.
func (s *Store) PutIssue(issue domain.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues[issue.ID] = cloneIssue(issue)
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; !exists {
		s.order = append(s.order, user.ID)
	}
	s.users[user.ID] = user
}

// Issues returns the issue repository view.
func (s *Store) Issues() *IssueRepository { return &IssueRepository{s} }

// Users returns the user directory view.
func (s *Store) Users() *UserRepository { return &UserRepository{s} }

// Audit returns the audit repository view.
func (s *Store) Audit() *AuditRepository { return &AuditRepository{s} }

// IssueRepository implements repository.IssueRepository.
type IssueRepository struct{ s *Store }

func (r *IssueRepository) FindOpenIssues(_ context.Context, order domain.IssueOrder) ([]domain.Issue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]domain.Issue, 0, len(r.s.issues))
	for _, issue := range r.s.issues {
		if !issue.Status.IsTerminal() {
			result = append(result, cloneIssue(issue))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if order == domain.OrderPriorityDescAgeAsc && a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return result, nil
}

func (r *IssueRepository) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	issue, ok := r.s.issues[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := cloneIssue(issue)
	return &clone, nil
}

func (r *IssueRepository) UpdateIssue(_ context.Context, id string, patch domain.IssuePatch, guard domain.UpdateGuard) (bool, error) {
	if patch.Empty() {
		return false, repository.ErrEmptyPatch
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	issue, ok := r.s.issues[id]
	if !ok || !guard.Allows(&issue) {
		return false, nil
	}
	patch.Apply(&issue)
	issue.UpdatedAt = r.s.now()
	r.s.issues[id] = issue
	return true, nil
}

func (r *IssueRepository) EscalationStats(_ context.Context, filter domain.MetricsFilter) (domain.EscalationStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := domain.EscalationStats{ByLevel: map[int]int{}}
	var resolvedHours float64
	var resolved int
	for _, issue := range r.s.issues {
		if !matches(issue, filter) {
			continue
		}
		stats.TotalEscalations += issue.EscalationCount
		if issue.EscalationLevel > 0 {
			stats.ByLevel[issue.EscalationLevel]++
		}
		if issue.EscalationCount > 0 && issue.Status.IsTerminal() && issue.ClosedAt != nil {
			resolvedHours += issue.ClosedAt.Sub(issue.CreatedAt).Hours()
			resolved++
		}
	}
	if resolved > 0 {
		stats.AvgResolutionHours = resolvedHours / float64(resolved)
	}
	return stats, nil
}

func matches(issue domain.Issue, filter domain.MetricsFilter) bool {
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

// UserRepository implements repository.UserRepository.
type UserRepository struct{ s *Store }

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *UserRepository) ListByRole(_ context.Context, roles []domain.Role) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.User
	for _, id := range r.s.order {
		user := r.s.users[id]
		if user.Active && hasRole(roles, user.Role) {
			result = append(result, user)
		}
	}
	return result, nil
}

func (r *UserRepository) FindByRole(_ context.Context, roles []domain.Role, excludeClosed bool) ([]domain.AssigneeCandidate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int)
	for _, issue := range r.s.issues {
		if issue.AssigneeID == nil {
			continue
		}
		if excludeClosed && issue.Status.IsTerminal() {
			continue
		}
		counts[*issue.AssigneeID]++
	}

	var result []domain.AssigneeCandidate
	for _, id := range r.s.order {
		user := r.s.users[id]
		if !user.Active || !hasRole(roles, user.Role) {
			continue
		}
		result = append(result, domain.AssigneeCandidate{
			ID:        user.ID,
			Name:      user.Name,
			Role:      user.Role,
			OpenCount: counts[user.ID],
		})
	}
	return result, nil
}

func hasRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuditRepository implements repository.AuditRepository.
type AuditRepository struct{ s *Store }

func (r *AuditRepository) Create(_ context.Context, entry *domain.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, cloneEntry(*entry))
	return nil
}

func (r *AuditRepository) List(_ context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	if q.IssueID == "" && q.ActorID == "" {
		return nil, errors.New("audit query requires an issue or actor")
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.AuditEntry
	for _, entry := range r.s.audit {
		if q.IssueID != "" && entry.IssueID != q.IssueID {
			continue
		}
		if q.IssueID == "" && entry.ActorID != q.ActorID {
			continue
		}
		result = append(result, cloneEntry(entry))
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func cloneIssue(issue domain.Issue) domain.Issue {
	if issue.AssigneeID != nil {
		id := *issue.AssigneeID
		issue.AssigneeID = &id
	}
	if issue.EscalatedAt != nil {
		at := *issue.EscalatedAt
		issue.EscalatedAt = &at
	}
	if issue.ClosedAt != nil {
		at := *issue.ClosedAt
		issue.ClosedAt = &at
	}
	if issue.ReopenedAt != nil {
		at := *issue.ReopenedAt
		issue.ReopenedAt = &at
	}
	issue.PriorClosures = append([]time.Time(nil), issue.PriorClosures...)
	return issue
}

func cloneEntry(entry domain.AuditEntry) domain.AuditEntry {
	if entry.Detail != nil {
		detail := make(map[string]any, len(entry.Detail))
		for k, v := range entry.Detail {
			detail[k] = v
		}
		entry.Detail = detail
	}
	return entry
}
