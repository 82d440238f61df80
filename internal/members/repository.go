package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const memberColumns = `federation_id, member_id, role, display_name, created_at, updated_at`

// Get returns one member or shared.ErrNotFound.
func (r *Repository) Get(ctx context.Context, federationID, memberID string) (Member, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM federation_members WHERE federation_id=$1 AND member_id=$2`, federationID, memberID)
	m, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, fmt.Errorf("member %s: %w", memberID, shared.ErrNotFound)
	}
	return m, err
}

// List returns every member of a federation ordered by id.
func (r *Repository) List(ctx context.Context, federationID string) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+memberColumns+` FROM federation_members WHERE federation_id=$1 ORDER BY member_id`, federationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert inserts or updates a member row.
func (r *Repository) Upsert(ctx context.Context, m Member) (Member, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO federation_members (federation_id, member_id, role, display_name, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
ON CONFLICT (federation_id, member_id) DO UPDATE SET role = EXCLUDED.role, display_name = EXCLUDED.display_name, updated_at = NOW()
RETURNING `+memberColumns, m.FederationID, m.MemberID, string(m.Role), m.DisplayName)
	return scanMember(row)
}

// UpdateRole changes the role only when the member still holds expected.
func (r *Repository) UpdateRole(ctx context.Context, federationID, memberID string, expected, role rbac.Role) (Member, error) {
	row := r.pool.QueryRow(ctx, `UPDATE federation_members SET role=$4, updated_at=NOW()
WHERE federation_id=$1 AND member_id=$2 AND role=$3
RETURNING `+memberColumns, federationID, memberID, string(expected), string(role))
	m, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, fmt.Errorf("member %s role changed concurrently: %w", memberID, shared.ErrConflict)
	}
	return m, err
}

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	var role string
	if err := row.Scan(&m.FederationID, &m.MemberID, &role, &m.DisplayName, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return Member{}, err
	}
	m.Role = rbac.Role(role)
	return m, nil
}
