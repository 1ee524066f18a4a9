package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// ErrEmptyPatch is returned when an update would change nothing.
var ErrEmptyPatch = errors.New("issue patch is empty")

// IssueRepository is the issue store the escalation engine reads and writes.
type IssueRepository interface {
	FindOpenIssues(ctx context.Context, order domain.IssueOrder) ([]domain.Issue, error)
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	// UpdateIssue applies patch if guard holds for the current row and
	// reports whether a row changed.
	UpdateIssue(ctx context.Context, id string, patch domain.IssuePatch, guard domain.UpdateGuard) (bool, error)
	EscalationStats(ctx context.Context, filter domain.MetricsFilter) (domain.EscalationStats, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `id, title, reporter_id, priority, status, city, cluster, assignee_id,
               escalation_level, escalation_count, escalated_at, created_at, updated_at,
               closed_at, reopened_at, prior_closures`

const terminalStatuses = `('resolved','closed')`

func (r *issueRepository) FindOpenIssues(ctx context.Context, order domain.IssueOrder) ([]domain.Issue, error) {
	orderBy := "created_at ASC"
	if order == domain.OrderPriorityDescAgeAsc {
		orderBy = `CASE priority WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC, created_at ASC`
	}
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE status NOT IN %s ORDER BY %s`,
		issueColumns, terminalStatuses, orderBy)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE id=$1`, issueColumns)
	return scanIssue(r.pool.QueryRow(ctx, query, id))
}

func (r *issueRepository) UpdateIssue(ctx context.Context, id string, patch domain.IssuePatch, guard domain.UpdateGuard) (bool, error) {
	if patch.Empty() {
		return false, ErrEmptyPatch
	}
	args := []any{}
	sets := []string{}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if patch.Priority != nil {
		set("priority", *patch.Priority)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.EscalationLevel != nil {
		set("escalation_level", *patch.EscalationLevel)
	}
	if patch.EscalationCount != nil {
		set("escalation_count", *patch.EscalationCount)
	}
	if patch.EscalatedAt != nil {
		set("escalated_at", *patch.EscalatedAt)
	}
	if patch.ClearEscalatedAt {
		sets = append(sets, "escalated_at=NULL")
	}
	if patch.AssigneeID != nil {
		set("assignee_id", *patch.AssigneeID)
	}
	if patch.ClosedAt != nil {
		set("closed_at", *patch.ClosedAt)
	}
	if patch.ClearClosedAt {
		sets = append(sets, "closed_at=NULL")
	}
	if patch.ReopenedAt != nil {
		set("reopened_at", *patch.ReopenedAt)
	}
	if patch.PriorClosures != nil {
		set("prior_closures", patch.PriorClosures)
	}
	sets = append(sets, "updated_at=NOW()")

	args = append(args, id)
	clauses := []string{fmt.Sprintf("id=$%d", len(args))}
	if guard.RequireOpen {
		clauses = append(clauses, "status NOT IN "+terminalStatuses)
	}
	if guard.RequireTerminal {
		clauses = append(clauses, "status IN "+terminalStatuses)
	}
	if guard.MaxLevel > 0 {
		args = append(args, guard.MaxLevel)
		clauses = append(clauses, fmt.Sprintf("escalation_level < $%d", len(args)))
	}
	if guard.ExpectLevel != nil {
		args = append(args, *guard.ExpectLevel)
		clauses = append(clauses, fmt.Sprintf("escalation_level = $%d", len(args)))
	}
	if guard.ExpectCount != nil {
		args = append(args, *guard.ExpectCount)
		clauses = append(clauses, fmt.Sprintf("escalation_count = $%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE issues SET %s WHERE %s`, strings.Join(sets, ", "), strings.Join(clauses, " AND "))
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *issueRepository) EscalationStats(ctx context.Context, filter domain.MetricsFilter) (domain.EscalationStats, error) {
	clauses, args := metricsClauses(filter)
	where := strings.Join(clauses, " AND ")
	stats := domain.EscalationStats{ByLevel: map[int]int{}}

	totalQuery := fmt.Sprintf(`SELECT COALESCE(SUM(escalation_count), 0) FROM issues WHERE %s`, where)
	if err := r.pool.QueryRow(ctx, totalQuery, args...).Scan(&stats.TotalEscalations); err != nil {
		return stats, fmt.Errorf("total escalations: %w", err)
	}

	levelQuery := fmt.Sprintf(`SELECT escalation_level, COUNT(*) FROM issues
        WHERE %s AND escalation_level > 0 GROUP BY escalation_level`, where)
	rows, err := r.pool.Query(ctx, levelQuery, args...)
	if err != nil {
		return stats, fmt.Errorf("escalations by level: %w", err)
	}
	for rows.Next() {
		var level, count int
		if err := rows.Scan(&level, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.ByLevel[level] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	avgQuery := fmt.Sprintf(`SELECT AVG(EXTRACT(EPOCH FROM (closed_at - created_at)) / 3600.0) FROM issues
        WHERE %s AND escalation_count > 0 AND status IN %s AND closed_at IS NOT NULL`, where, terminalStatuses)
	var avg *float64
	if err := r.pool.QueryRow(ctx, avgQuery, args...).Scan(&avg); err != nil {
		return stats, fmt.Errorf("average resolution: %w", err)
	}
	if avg != nil {
		stats.AvgResolutionHours = *avg
	}
	return stats, nil
}

func metricsClauses(filter domain.MetricsFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.City != nil {
		args = append(args, *filter.City)
		clauses = append(clauses, fmt.Sprintf("city=$%d", len(args)))
	}
	if filter.Cluster != nil {
		args = append(args, *filter.Cluster)
		clauses = append(clauses, fmt.Sprintf("cluster=$%d", len(args)))
	}
	return clauses, args
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.ReporterID,
		&issue.Priority,
		&issue.Status,
		&issue.City,
		&issue.Cluster,
		&issue.AssigneeID,
		&issue.EscalationLevel,
		&issue.EscalationCount,
		&issue.EscalatedAt,
		&issue.CreatedAt,
		&issue.UpdatedAt,
		&issue.ClosedAt,
		&issue.ReopenedAt,
		&issue.PriorClosures,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}
