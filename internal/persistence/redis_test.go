package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/grievance-service/internal/config"
)

func TestConnectRedis_DisabledWithoutAddress(t *testing.T) {
	r, err := ConnectRedis(context.Background(), config.RedisConfig{}, zaptest.NewLogger(t))
	require.ErrorIs(t, err, ErrRedisDisabled)
	assert.Nil(t, r)
}

func TestConnectRedis_UnreachableReturnsError(t *testing.T) {
	cfg := config.RedisConfig{Addr: "127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond}
	r, err := ConnectRedis(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Nil(t, r)
}

func TestRedis_DisabledHandleIsSafe(t *testing.T) {
	var r *Redis
	assert.False(t, r.Enabled())
	assert.Nil(t, r.Cmdable())
	assert.ErrorIs(t, r.Ping(context.Background()), ErrRedisDisabled)
	r.Close()
}
