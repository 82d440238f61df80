package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hearthguard/hearthguard/internal/rbac"
)

func newRedisLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLimiter(NewRedisCounter(client, "test")), mr
}

func TestDailyCapAcrossUTCDays(t *testing.T) {
	limiter, _ := newRedisLimiter(t)
	ctx := context.Background()
	limit := 3
	day := time.Date(2025, 6, 2, 23, 59, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		res, err := limiter.IncrementAndCheck(ctx, "fed-1", "kit", rbac.EventPayment, day, &limit)
		require.NoError(t, err)
		require.True(t, res.WithinLimit)
		require.Equal(t, i, res.CurrentCount)
	}
	res, err := limiter.IncrementAndCheck(ctx, "fed-1", "kit", rbac.EventPayment, day, &limit)
	require.NoError(t, err)
	require.False(t, res.WithinLimit)
	require.Equal(t, 4, res.CurrentCount)

	next := day.Add(2 * time.Minute)
	res, err = limiter.IncrementAndCheck(ctx, "fed-1", "kit", rbac.EventPayment, next, &limit)
	require.NoError(t, err)
	require.True(t, res.WithinLimit)
	require.Equal(t, 1, res.CurrentCount)
}

func TestKeysAreScoped(t *testing.T) {
	limiter, _ := newRedisLimiter(t)
	ctx := context.Background()
	limit := 1
	day := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	for _, k := range []struct {
		fed, member string
		event       rbac.EventType
	}{
		{"fed-1", "kit", rbac.EventPayment},
		{"fed-2", "kit", rbac.EventPayment},
		{"fed-1", "ada", rbac.EventPayment},
		{"fed-1", "kit", rbac.EventInvoice},
	} {
		res, err := limiter.IncrementAndCheck(ctx, k.fed, k.member, k.event, day, &limit)
		require.NoError(t, err)
		require.True(t, res.WithinLimit)
	}
}

func TestNilCapDoesNotCount(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	res, err := limiter.IncrementAndCheck(context.Background(), "fed-1", "kit", rbac.EventPayment, time.Now(), nil)
	require.NoError(t, err)
	require.True(t, res.WithinLimit)
	require.Empty(t, mr.Keys())
}

func TestKeyExpiry(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	limit := 5
	now := time.Now().UTC()
	_, err := limiter.IncrementAndCheck(context.Background(), "fed-1", "kit", rbac.EventPayment, now, &limit)
	require.NoError(t, err)
	keys := mr.Keys()
	require.Len(t, keys, 1)
	ttl := mr.TTL(keys[0])
	require.Greater(t, ttl, 24*time.Hour)
	require.LessOrEqual(t, ttl, 48*time.Hour)
}

func TestPastDayKeysStillCount(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	wall := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	mr.SetTime(wall)
	counter := NewRedisCounter(client, "test")
	counter.now = func() time.Time { return wall }
	limiter := NewLimiter(counter)

	limit := 3
	day := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		res, err := limiter.IncrementAndCheck(context.Background(), "fed-1", "kit", rbac.EventPayment, day, &limit)
		require.NoError(t, err)
		require.Equal(t, i, res.CurrentCount)
		require.Equal(t, i <= limit, res.WithinLimit)
	}
	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.Equal(t, keyFloor, mr.TTL(keys[0]))
}

func TestConcurrentIncrementsAreAtomic(t *testing.T) {
	limiter, _ := newRedisLimiter(t)
	limit := 10
	day := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := limiter.IncrementAndCheck(context.Background(), "fed-1", "kit", rbac.EventLightningZap, day, &limit)
			if err == nil && res.WithinLimit {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, limit, allowed)
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	require.Equal(t, BackendRedis, b)
	b, err = ParseBackend("Postgres")
	require.NoError(t, err)
	require.Equal(t, BackendPostgres, b)
	_, err = ParseBackend("memcached")
	require.Error(t, err)
}
