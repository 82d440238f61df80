package approvals

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

// Repository provides PostgreSQL backed persistence for approval requests.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = `id, federation_id, member_id, event_type, payload_ref, min_approver_role, status, created_at, expires_at, decided_by, decided_at, reason`

// Insert stores a new request.
func (r *Repository) Insert(ctx context.Context, req Request) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO approval_requests (`+requestColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, NULL, NULL)`,
		req.ID, req.FederationID, req.MemberID, string(req.EventType), req.PayloadRef,
		string(req.RequiredMinApproverRole), string(req.Status), req.CreatedAt, req.ExpiresAt)
	return err
}

// Get returns one request as stored.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id=$1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, fmt.Errorf("approval %s: %w", id, shared.ErrNotFound)
	}
	return req, err
}

// Decide moves a pending, unexpired request to a terminal state. It returns
// ErrNotPending when the guard fails.
func (r *Repository) Decide(ctx context.Context, id uuid.UUID, d Decision) (Request, error) {
	row := r.pool.QueryRow(ctx, `UPDATE approval_requests
SET status=$2, decided_by=$3, decided_at=$4, reason=NULLIF($5, '')
WHERE id=$1 AND status='pending' AND expires_at >= $4
RETURNING `+requestColumns, id, string(d.Status), d.DecidedBy, d.DecidedAt, d.Reason)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotPending
	}
	return req, err
}

// ExpireOne materialises lazy expiry of a single request.
func (r *Repository) ExpireOne(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE approval_requests SET status='expired'
WHERE id=$1 AND status='pending' AND expires_at < $2`, id, now)
	return err
}

// ExpireAll materialises lazy expiry of every overdue request.
func (r *Repository) ExpireAll(ctx context.Context, now time.Time) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `UPDATE approval_requests SET status='expired'
WHERE status='pending' AND expires_at < $1
RETURNING `+requestColumns, now)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// List returns requests of a federation, newest first. Status filtering
// treats overdue pending rows as expired.
func (r *Repository) List(ctx context.Context, federationID string, status Status, now time.Time) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE federation_id=$1`
	args := []any{federationID}
	switch status {
	case "":
	case StatusPending:
		query += ` AND status='pending' AND expires_at >= $2`
		args = append(args, now)
	case StatusExpired:
		query += ` AND (status='expired' OR (status='pending' AND expires_at < $2))`
		args = append(args, now)
	default:
		query += ` AND status=$2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT 200`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var event, role, status string
	err := row.Scan(&req.ID, &req.FederationID, &req.MemberID, &event, &req.PayloadRef, &role, &status,
		&req.CreatedAt, &req.ExpiresAt, &req.DecidedBy, &req.DecidedAt, &req.Reason)
	if err != nil {
		return Request{}, err
	}
	req.EventType = rbac.EventType(event)
	req.RequiredMinApproverRole = rbac.Role(role)
	req.Status = Status(status)
	return req, nil
}
