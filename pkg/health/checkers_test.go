package health

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
)

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	ok := PingCheck(pingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	down := PingCheck(pingerFunc(func(context.Context) error { return errors.New("refused") }))
	err := down(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestRedisCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	check := RedisCheck(client)
	require.NoError(t, check(context.Background()))

	mr.Close()
	assert.Error(t, check(context.Background()))
}

func TestEngineCheck(t *testing.T) {
	for _, policy := range []discount.GroupingPolicy{
		discount.GroupingCartOrder,
		discount.GroupingPriceDesc,
		discount.GroupingPriceAsc,
	} {
		t.Run(string(policy), func(t *testing.T) {
			check := EngineCheck(discount.New(discount.WithGrouping(policy)))
			assert.NoError(t, check(context.Background()))
		})
	}
}
