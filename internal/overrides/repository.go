package overrides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// Repository provides PostgreSQL backed persistence for overrides.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const overrideColumns = `id, federation_id, member_id, event_type, allowed, reason, created_by, created_at, expires_at`

// ActiveFor returns the newest override in force at now, or shared.ErrNotFound.
func (r *Repository) ActiveFor(ctx context.Context, federationID, memberID string, event rbac.EventType, now time.Time) (Override, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+overrideColumns+` FROM member_overrides
WHERE federation_id=$1 AND member_id=$2 AND event_type=$3 AND (expires_at IS NULL OR expires_at > $4)
ORDER BY created_at DESC LIMIT 1`, federationID, memberID, string(event), now)
	o, err := scanOverride(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Override{}, shared.ErrNotFound
	}
	return o, err
}

// Get returns one override by id.
func (r *Repository) Get(ctx context.Context, federationID string, id uuid.UUID) (Override, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+overrideColumns+` FROM member_overrides WHERE federation_id=$1 AND id=$2`, federationID, id)
	o, err := scanOverride(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Override{}, fmt.Errorf("override %s: %w", id, shared.ErrNotFound)
	}
	return o, err
}

// Insert stores a new override.
func (r *Repository) Insert(ctx context.Context, o Override) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO member_overrides (`+overrideColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.FederationID, o.MemberID, string(o.EventType), o.Allowed, o.Reason, o.CreatedBy, o.CreatedAt, o.ExpiresAt)
	return err
}

// Expire sets expires_at=now when the override is still active. It reports
// whether a row changed.
func (r *Repository) Expire(ctx context.Context, federationID string, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE member_overrides SET expires_at=$3
WHERE federation_id=$1 AND id=$2 AND (expires_at IS NULL OR expires_at > $3)`, federationID, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// List returns overrides of a federation, newest first.
func (r *Repository) List(ctx context.Context, federationID string, includeInactive bool, now time.Time) ([]Override, error) {
	query := `SELECT ` + overrideColumns + ` FROM member_overrides WHERE federation_id=$1`
	args := []any{federationID}
	if !includeInactive {
		query += ` AND (expires_at IS NULL OR expires_at > $2)`
		args = append(args, now)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOverride(row pgx.Row) (Override, error) {
	var o Override
	var event string
	if err := row.Scan(&o.ID, &o.FederationID, &o.MemberID, &event, &o.Allowed, &o.Reason, &o.CreatedBy, &o.CreatedAt, &o.ExpiresAt); err != nil {
		return Override{}, err
	}
	o.EventType = rbac.EventType(event)
	return o, nil
}
