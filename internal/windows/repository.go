package windows

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// Repository provides PostgreSQL backed persistence for windows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const windowColumns = `id, federation_id, scope_type, scope_id, event_type, window_type, start_time, end_time, days_of_week, timezone, starts_at, expires_at, created_by, created_at`

// ForScopes returns windows scoped to the role or to the member for event.
func (r *Repository) ForScopes(ctx context.Context, federationID string, role rbac.Role, memberID string, event rbac.EventType) ([]Window, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+windowColumns+` FROM time_windows
WHERE federation_id=$1 AND event_type=$2
  AND ((scope_type='role' AND scope_id=$3) OR (scope_type='member' AND scope_id=$4))`,
		federationID, string(event), string(role), memberID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// List returns every window of a federation.
func (r *Repository) List(ctx context.Context, federationID string) ([]Window, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+windowColumns+` FROM time_windows WHERE federation_id=$1 ORDER BY created_at`, federationID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Get loads one window.
func (r *Repository) Get(ctx context.Context, federationID string, id uuid.UUID) (Window, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+windowColumns+` FROM time_windows WHERE federation_id=$1 AND id=$2`, federationID, id)
	if err != nil {
		return Window{}, err
	}
	out, err := collect(rows)
	if err != nil {
		return Window{}, err
	}
	if len(out) == 0 {
		return Window{}, fmt.Errorf("window %s: %w", id, shared.ErrNotFound)
	}
	return out[0], nil
}

// Insert stores a window.
func (r *Repository) Insert(ctx context.Context, w Window) error {
	var days []int16
	if w.WindowType == TypeScheduled {
		days = make([]int16, len(w.DaysOfWeek))
		for i, d := range w.DaysOfWeek {
			days[i] = int16(d)
		}
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO time_windows (`+windowColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		w.ID, w.FederationID, string(w.ScopeType), w.ScopeID, string(w.EventType), string(w.WindowType),
		nullable(w.StartTime), nullable(w.EndTime), days, nullable(w.Timezone), w.StartsAt, w.ExpiresAt, w.CreatedBy, w.CreatedAt)
	return err
}

// Delete removes a window and returns the removed row.
func (r *Repository) Delete(ctx context.Context, federationID string, id uuid.UUID) (Window, error) {
	rows, err := r.pool.Query(ctx, `DELETE FROM time_windows WHERE federation_id=$1 AND id=$2 RETURNING `+windowColumns, federationID, id)
	if err != nil {
		return Window{}, err
	}
	out, err := collect(rows)
	if err != nil {
		return Window{}, err
	}
	if len(out) == 0 {
		return Window{}, fmt.Errorf("window %s: %w", id, shared.ErrNotFound)
	}
	return out[0], nil
}

func collect(rows pgx.Rows) ([]Window, error) {
	defer rows.Close()
	var out []Window
	for rows.Next() {
		var (
			w                  Window
			scope, event, kind string
			start, end, tz     *string
			days               []int16
		)
		if err := rows.Scan(&w.ID, &w.FederationID, &scope, &w.ScopeID, &event, &kind, &start, &end, &days, &tz, &w.StartsAt, &w.ExpiresAt, &w.CreatedBy, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.ScopeType = ScopeType(scope)
		w.EventType = rbac.EventType(event)
		w.WindowType = Type(kind)
		w.StartTime = deref(start)
		w.EndTime = deref(end)
		w.Timezone = deref(tz)
		for _, d := range days {
			w.DaysOfWeek = append(w.DaysOfWeek, int(d))
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
