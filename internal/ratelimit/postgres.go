package ratelimit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthguard/hearthguard/internal/rbac"
)

// PostgresCounter counts with an upsert that returns the new value.
type PostgresCounter struct {
	pool *pgxpool.Pool
}

// NewPostgresCounter builds a Postgres backed counter.
func NewPostgresCounter(pool *pgxpool.Pool) *PostgresCounter {
	return &PostgresCounter{pool: pool}
}

// Increment implements Counter.
func (c *PostgresCounter) Increment(ctx context.Context, federationID, memberID string, event rbac.EventType, day time.Time) (int, error) {
	var count int
	err := c.pool.QueryRow(ctx, `INSERT INTO rate_counters (federation_id, member_id, event_type, day, count)
VALUES ($1, $2, $3, $4, 1)
ON CONFLICT (federation_id, member_id, event_type, day) DO UPDATE SET count = rate_counters.count + 1
RETURNING count`, federationID, memberID, string(event), day).Scan(&count)
	return count, err
}

// Prune deletes counters of days before cutoff.
func (c *PostgresCounter) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM rate_counters WHERE day < $1`, DayOf(cutoff))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
