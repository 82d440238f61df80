package permissions

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthguard/hearthguard/internal/platform/db"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// Repository provides PostgreSQL backed persistence for role rules.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ruleColumns = `federation_id, role, event_type, can_sign, requires_approval, max_daily_count, configured_by, updated_at`

// Get returns one rule or shared.ErrNotFound.
func (r *Repository) Get(ctx context.Context, federationID string, role rbac.Role, event rbac.EventType) (RolePermission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM role_permissions
WHERE federation_id=$1 AND role=$2 AND event_type=$3`, federationID, string(role), string(event))
	p, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return RolePermission{}, shared.ErrNotFound
	}
	return p, err
}

// List returns every rule of a federation.
func (r *Repository) List(ctx context.Context, federationID string) ([]RolePermission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM role_permissions WHERE federation_id=$1 ORDER BY role, event_type`, federationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RolePermission
	for rows.Next() {
		p, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceRoles replaces the full rule set of every role in sets inside one
// transaction.
func (r *Repository) ReplaceRoles(ctx context.Context, federationID, configuredBy string, sets map[rbac.Role][]RolePermission) error {
	roles := make([]string, 0, len(sets))
	for role := range sets {
		roles = append(roles, string(role))
	}
	sort.Strings(roles)
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE federation_id=$1 AND role = ANY($2)`, federationID, roles); err != nil {
			return fmt.Errorf("permissions: clear roles: %w", err)
		}
		batch := &pgx.Batch{}
		for _, role := range roles {
			for _, p := range sets[rbac.Role(role)] {
				batch.Queue(`INSERT INTO role_permissions (federation_id, role, event_type, can_sign, requires_approval, max_daily_count, configured_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
					federationID, role, string(p.EventType), p.CanSign, p.RequiresApproval, p.MaxDailyCount, configuredBy)
			}
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("permissions: insert rules: %w", err)
		}
		return nil
	})
}

func scanRule(row pgx.Row) (RolePermission, error) {
	var p RolePermission
	var role, event string
	if err := row.Scan(&p.FederationID, &role, &event, &p.CanSign, &p.RequiresApproval, &p.MaxDailyCount, &p.ConfiguredBy, &p.UpdatedAt); err != nil {
		return RolePermission{}, err
	}
	p.Role = rbac.Role(role)
	p.EventType = rbac.EventType(event)
	return p, nil
}
