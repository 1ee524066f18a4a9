package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/domain"
)

var base = time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestIssueRepository_FindOpenIssuesOrdering(t *testing.T) {
	store := NewStore()
	store.PutIssue(domain.Issue{ID: "low-old", Priority: domain.IssuePriorityLow, Status: domain.IssueStatusOpen, CreatedAt: base})
	store.PutIssue(domain.Issue{ID: "crit-new", Priority: domain.IssuePriorityCritical, Status: domain.IssueStatusOpen, CreatedAt: base.Add(2 * time.Hour)})
	store.PutIssue(domain.Issue{ID: "crit-old", Priority: domain.IssuePriorityCritical, Status: domain.IssueStatusInProgress, CreatedAt: base.Add(time.Hour)})
	store.PutIssue(domain.Issue{ID: "closed", Priority: domain.IssuePriorityCritical, Status: domain.IssueStatusClosed, CreatedAt: base})

	issues, err := store.Issues().FindOpenIssues(context.Background(), domain.OrderPriorityDescAgeAsc)
	require.NoError(t, err)

	ids := make([]string, 0, len(issues))
	for _, issue := range issues {
		ids = append(ids, issue.ID)
	}
	assert.Equal(t, []string{"crit-old", "crit-new", "low-old"}, ids)
}

func TestIssueRepository_UpdateIssueHonoursGuard(t *testing.T) {
	store := NewStore()
	store.PutIssue(domain.Issue{ID: "i-1", Priority: domain.IssuePriorityHigh, Status: domain.IssueStatusOpen, EscalationLevel: 3})
	repo := store.Issues()
	ctx := context.Background()

	ok, err := repo.UpdateIssue(ctx, "i-1", domain.IssuePatch{EscalationLevel: ptr(4)}, domain.UpdateGuard{RequireOpen: true, MaxLevel: 3})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateIssue(ctx, "i-1", domain.IssuePatch{Priority: ptr(domain.IssuePriorityCritical)}, domain.UpdateGuard{RequireOpen: true})
	require.NoError(t, err)
	assert.True(t, ok)

	issue, err := repo.GetByID(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IssuePriorityCritical, issue.Priority)
	assert.Equal(t, 3, issue.EscalationLevel)

	ok, err = repo.UpdateIssue(ctx, "missing", domain.IssuePatch{Priority: ptr(domain.IssuePriorityLow)}, domain.UpdateGuard{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIssueRepository_UpdateIssueRejectsMovedEscalationState(t *testing.T) {
	store := NewStore()
	store.PutIssue(domain.Issue{ID: "i-2", Priority: domain.IssuePriorityHigh, Status: domain.IssueStatusOpen, EscalationLevel: 2, EscalationCount: 2})
	repo := store.Issues()
	ctx := context.Background()

	ok, err := repo.UpdateIssue(ctx, "i-2", domain.IssuePatch{EscalationLevel: ptr(1), EscalationCount: ptr(1)},
		domain.UpdateGuard{RequireOpen: true, ExpectLevel: ptr(0), ExpectCount: ptr(0)})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateIssue(ctx, "i-2", domain.IssuePatch{EscalationLevel: ptr(3), EscalationCount: ptr(3)},
		domain.UpdateGuard{RequireOpen: true, ExpectLevel: ptr(2), ExpectCount: ptr(2)})
	require.NoError(t, err)
	assert.True(t, ok)

	issue, err := repo.GetByID(ctx, "i-2")
	require.NoError(t, err)
	assert.Equal(t, 3, issue.EscalationLevel)
	assert.Equal(t, 3, issue.EscalationCount)
}

func TestIssueRepository_GetByIDMissing(t *testing.T) {
	_, err := NewStore().Issues().GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestUserRepository_FindByRoleCountsLiveIssues(t *testing.T) {
	store := NewStore()
	store.PutUser(domain.User{ID: "a1", Name: "Asha", Role: domain.RoleAgent, Active: true})
	store.PutUser(domain.User{ID: "a2", Name: "Ben", Role: domain.RoleAgent, Active: false})
	store.PutUser(domain.User{ID: "m1", Name: "Mira", Role: domain.RoleManager, Active: true})
	store.PutIssue(domain.Issue{ID: "1", Status: domain.IssueStatusOpen, AssigneeID: ptr("a1")})
	store.PutIssue(domain.Issue{ID: "2", Status: domain.IssueStatusClosed, AssigneeID: ptr("a1")})

	open, err := store.Users().FindByRole(context.Background(), []domain.Role{domain.RoleAgent}, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 1, open[0].OpenCount)

	all, err := store.Users().FindByRole(context.Background(), []domain.Role{domain.RoleAgent}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, all[0].OpenCount)
}

func TestAuditRepository_ListNewestFirst(t *testing.T) {
	store := NewStore()
	repo := store.Audit()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &domain.AuditEntry{
			ID:        string(rune('a' + i)),
			IssueID:   "i-1",
			ActorID:   domain.SystemActor,
			Action:    domain.AuditActionEscalated,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := repo.List(ctx, domain.AuditQuery{IssueID: "i-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)

	_, err = repo.List(ctx, domain.AuditQuery{})
	assert.Error(t, err)
}

func TestIssueRepository_EscalationStats(t *testing.T) {
	store := NewStore()
	closed := base.Add(10 * time.Hour)
	store.PutIssue(domain.Issue{ID: "1", City: "pune", Status: domain.IssueStatusOpen, EscalationLevel: 1, EscalationCount: 1, CreatedAt: base})
	store.PutIssue(domain.Issue{ID: "2", City: "pune", Status: domain.IssueStatusResolved, EscalationLevel: 2, EscalationCount: 3, CreatedAt: base, ClosedAt: &closed})
	store.PutIssue(domain.Issue{ID: "3", City: "delhi", Status: domain.IssueStatusOpen, EscalationLevel: 1, EscalationCount: 1, CreatedAt: base})

	stats, err := store.Issues().EscalationStats(context.Background(), domain.MetricsFilter{City: ptr("pune")})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalEscalations)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, stats.ByLevel)
	assert.Equal(t, 10.0, stats.AvgResolutionHours)
}
