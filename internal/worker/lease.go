package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TickLeaseKey is the Redis key guarding the escalation tick.
const TickLeaseKey = "grievance:escalation:tick-lease"

// Lease elects a single replica to run a tick.
type Lease interface {
	// Acquire reports whether this replica holds the lease for the next ttl.
	Acquire(ctx context.Context) (bool, error)
}

// RedisLease takes the lease with SET NX PX. It is never released
// explicitly; expiry hands it to whichever replica ticks next.
type RedisLease struct {
	client redis.Cmdable
	key    string
	owner  string
	ttl    time.Duration
}

// NewRedisLease builds a lease owned by this process.
func NewRedisLease(client redis.Cmdable, ttl time.Duration) *RedisLease {
	return &RedisLease{
		client: client,
		key:    TickLeaseKey,
		owner:  uuid.NewString(),
		ttl:    ttl,
	}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
}

// alwaysLease is used when no Redis is configured.
type alwaysLease struct{}

func (alwaysLease) Acquire(context.Context) (bool, error) { return true, nil }
