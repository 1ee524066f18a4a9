package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// UserRepository is the user/assignee directory.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// ListByRole returns active users holding any of roles.
	ListByRole(ctx context.Context, roles []domain.Role) ([]domain.User, error)
	// FindByRole returns active users holding any of roles together with a
	// live count of their assigned issues. With excludeClosed only issues
	// that are not resolved or closed are counted.
	FindByRole(ctx context.Context, roles []domain.Role, excludeClosed bool) ([]domain.AssigneeCandidate, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, name, email, role, active_flag FROM users WHERE id=$1`
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.Active,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, roles []domain.Role) ([]domain.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	const query = `
        SELECT id, name, email, role, active_flag FROM users
        WHERE active_flag = TRUE AND role = ANY($1)
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, roleStrings(roles))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.Active); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func (r *userRepository) FindByRole(ctx context.Context, roles []domain.Role, excludeClosed bool) ([]domain.AssigneeCandidate, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	join := "i.assignee_id = u.id"
	if excludeClosed {
		join += " AND i.status NOT IN " + terminalStatuses
	}
	query := fmt.Sprintf(`
        SELECT u.id, u.name, u.role, COUNT(i.id) AS open_count
        FROM users u
        LEFT JOIN issues i ON %s
        WHERE u.active_flag = TRUE AND u.role = ANY($1)
        GROUP BY u.id, u.name, u.role`, join)

	rows, err := r.pool.Query(ctx, query, roleStrings(roles))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssigneeCandidate
	for rows.Next() {
		var candidate domain.AssigneeCandidate
		if err := rows.Scan(&candidate.ID, &candidate.Name, &candidate.Role, &candidate.OpenCount); err != nil {
			return nil, err
		}
		result = append(result, candidate)
	}
	return result, rows.Err()
}

func roleStrings(roles []domain.Role) []string {
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	return out
}
