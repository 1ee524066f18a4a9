package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// AuditRepository stores audit entries. Entries are never updated or deleted.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, query domain.AuditQuery) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_entries (id, issue_id, actor_id, action, previous_status, new_status, detail, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	detail := entry.Detail
	if detail == nil {
		// detail is NOT NULL; pgx encodes a nil map as NULL.
		detail = map[string]any{}
	}
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.IssueID,
		entry.ActorID,
		entry.Action,
		entry.PreviousStatus,
		entry.NewStatus,
		detail,
		entry.CreatedAt,
	)
	return err
}

func (r *auditRepository) List(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	var (
		column string
		value  string
	)
	switch {
	case q.IssueID != "":
		column, value = "issue_id", q.IssueID
	case q.ActorID != "":
		column, value = "actor_id", q.ActorID
	default:
		return nil, errors.New("audit query requires an issue or actor")
	}

	query := `
        SELECT id, issue_id, actor_id, action, previous_status, new_status, detail, created_at
        FROM audit_entries WHERE ` + column + `=$1 ORDER BY created_at DESC, id DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, value, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.IssueID,
			&entry.ActorID,
			&entry.Action,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.Detail,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
