package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hearthguard/hearthguard/internal/rbac"
)

// keyRetention keeps a day's key alive until two days after the day starts.
// keyFloor is the minimum remaining lifetime measured from the wall clock, so
// a key for a day already past its retention still outlives the request.
const (
	keyRetention = 48 * time.Hour
	keyFloor     = 24 * time.Hour
)

// RedisCounter counts with MULTI INCR + EXPIREAT.
type RedisCounter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisCounter builds a Redis backed counter.
func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "hearthguard:rate"
	}
	return &RedisCounter{client: client, prefix: prefix, now: time.Now}
}

func (c *RedisCounter) key(federationID, memberID string, event rbac.EventType, day time.Time) string {
	return c.prefix + ":" + federationID + ":" + memberID + ":" + string(event) + ":" + day.Format("2006-01-02")
}

// Increment implements Counter.
func (c *RedisCounter) Increment(ctx context.Context, federationID, memberID string, event rbac.EventType, day time.Time) (int, error) {
	key := c.key(federationID, memberID, event, day)
	expireAt := day.Add(keyRetention)
	if floor := c.now().Add(keyFloor); expireAt.Before(floor) {
		expireAt = floor
	}
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireAt(ctx, key, expireAt)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}
