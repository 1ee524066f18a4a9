package worker

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisLease_UnreachableRedisReportsError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	lease := NewRedisLease(client, time.Minute)
	held, err := lease.Acquire(context.Background())
	assert.Error(t, err)
	assert.False(t, held)
}
