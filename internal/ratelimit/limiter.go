// Package ratelimit keeps per-day action counters.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hearthguard/hearthguard/internal/rbac"
)

// Result is the outcome of one counted attempt.
type Result struct {
	WithinLimit  bool
	CurrentCount int
}

// Counter increments the counter of one (federation, member, event, day)
// key and returns the post-increment count.
type Counter interface {
	Increment(ctx context.Context, federationID, memberID string, event rbac.EventType, day time.Time) (int, error)
}

// Limiter applies daily caps on top of a Counter.
type Limiter struct {
	counter Counter
}

// NewLimiter builds a Limiter.
func NewLimiter(counter Counter) *Limiter {
	return &Limiter{counter: counter}
}

// IncrementAndCheck counts one attempt against maxCount. A nil maxCount never counts.
func (l *Limiter) IncrementAndCheck(ctx context.Context, federationID, memberID string, event rbac.EventType, day time.Time, maxCount *int) (Result, error) {
	if maxCount == nil {
		return Result{WithinLimit: true}, nil
	}
	count, err := l.counter.Increment(ctx, federationID, memberID, event, DayOf(day))
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: increment: %w", err)
	}
	return Result{WithinLimit: count <= *maxCount, CurrentCount: count}, nil
}

// DayOf truncates t to the start of its UTC day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Backend names accepted by New.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// ParseBackend validates a backend name.
func ParseBackend(raw string) (string, error) {
	switch b := strings.ToLower(strings.TrimSpace(raw)); b {
	case "", BackendRedis:
		return BackendRedis, nil
	case BackendPostgres:
		return b, nil
	default:
		return "", fmt.Errorf("ratelimit: unknown backend %q", raw)
	}
}
