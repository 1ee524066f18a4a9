package service

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository"
)

// DefaultRoleRank orders roles for the balancer tiebreak, lowest first.
var DefaultRoleRank = map[domain.Role]int{
	domain.RoleAgent:   0,
	domain.RoleManager: 1,
	domain.RoleAdmin:   2,
}

// WorkloadBalancer picks the least loaded eligible user for a role set.
type WorkloadBalancer struct {
	users  repository.UserRepository
	rank   map[domain.Role]int
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewWorkloadBalancer builds a balancer whose final tiebreak is driven by seed.
func NewWorkloadBalancer(users repository.UserRepository, rank map[domain.Role]int, seed uint64, logger *zap.Logger) *WorkloadBalancer {
	if len(rank) == 0 {
		rank = DefaultRoleRank
	}
	return &WorkloadBalancer{
		users:  users,
		rank:   rank,
		logger: logger.Named("balancer"),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// SelectAssignee returns the candidate with the fewest assigned issues, ties
// broken by role rank and then at random. It returns nil when nobody holds
// any of roles. Counts are read fresh on every call.
func (b *WorkloadBalancer) SelectAssignee(ctx context.Context, roles []domain.Role, excludeClosed bool) (*domain.AssigneeCandidate, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	candidates, err := b.users.FindByRole(ctx, roles, excludeClosed)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		b.logger.Debug("no eligible assignee", zap.Any("roles", roles))
		return nil, nil
	}

	b.mu.Lock()
	b.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	b.mu.Unlock()

	slices.SortStableFunc(candidates, func(a, c domain.AssigneeCandidate) int {
		if a.OpenCount != c.OpenCount {
			return a.OpenCount - c.OpenCount
		}
		return b.rankOf(a.Role) - b.rankOf(c.Role)
	})

	chosen := candidates[0]
	return &chosen, nil
}

func (b *WorkloadBalancer) rankOf(role domain.Role) int {
	if r, ok := b.rank[role]; ok {
		return r
	}
	return len(b.rank)
}
