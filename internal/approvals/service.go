package approvals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthguard/hearthguard/internal/audit"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

const idempotencyModule = "approvals"

// RepositoryPort defines data access methods for approval requests.
type RepositoryPort interface {
	Insert(ctx context.Context, req Request) error
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	Decide(ctx context.Context, id uuid.UUID, d Decision) (Request, error)
	ExpireOne(ctx context.Context, id uuid.UUID, now time.Time) error
	ExpireAll(ctx context.Context, now time.Time) ([]Request, error)
	List(ctx context.Context, federationID string, status Status, now time.Time) ([]Request, error)
}

// IdempotencyStore binds client supplied keys to created requests.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key, module, ref string) error
	Lookup(ctx context.Context, key, module string) (string, error)
	Delete(ctx context.Context, key string) error
}

// MemberLookup confirms that a member belongs to a federation.
type MemberLookup interface {
	RoleOf(ctx context.Context, federationID, memberID string) (rbac.Role, error)
}

// Notifier tells approvers that a request is waiting.
type Notifier interface {
	NotifyApprovers(ctx context.Context, req Request) error
}

// Auditor records mutations.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Config tunes the workflow.
type Config struct {
	DefaultTTL time.Duration
}

// Service runs the approval workflow.
type Service struct {
	repo     RepositoryPort
	idem     IdempotencyStore
	members  MemberLookup
	notifier Notifier
	audit    Auditor
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, idem IdempotencyStore, members MemberLookup, notifier Notifier, auditor Auditor, logger *slog.Logger, cfg Config) *Service {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, idem: idem, members: members, notifier: notifier, audit: auditor, logger: logger, cfg: cfg, now: time.Now}
}

// Create opens a pending request. A repeated idempotency key returns the
// request created by the first call.
func (s *Service) Create(ctx context.Context, actor rbac.Actor, in CreateInput, idempotencyKey string) (Request, bool, error) {
	event, err := rbac.ParseEventType(in.EventType)
	if err != nil {
		return Request{}, false, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	payloadRef := strings.TrimSpace(in.PayloadRef)
	if payloadRef == "" {
		return Request{}, false, fmt.Errorf("%w: payloadRef required", shared.ErrValidation)
	}
	memberID := strings.TrimSpace(in.MemberID)
	if memberID == "" {
		memberID = actor.MemberID
	}
	if memberID != actor.MemberID && !rbac.CanManagePolicy(actor.Role) {
		return Request{}, false, fmt.Errorf("%w: cannot request approval on behalf of another member", shared.ErrForbidden)
	}
	if s.members == nil {
		return Request{}, false, errors.New("approvals: member lookup not configured")
	}
	if _, err := s.members.RoleOf(ctx, actor.FederationID, memberID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Request{}, false, fmt.Errorf("%w: member %s is not in federation", shared.ErrValidation, memberID)
		}
		return Request{}, false, fmt.Errorf("approvals: member lookup: %w", err)
	}
	ttl := s.cfg.DefaultTTL
	if in.TTLSeconds > 0 {
		ttl = time.Duration(in.TTLSeconds) * time.Second
	}

	now := s.now().UTC()
	req := Request{
		ID:                      uuid.New(),
		FederationID:            actor.FederationID,
		MemberID:                memberID,
		EventType:               event,
		PayloadRef:              payloadRef,
		RequiredMinApproverRole: rbac.MinApproverRole(),
		Status:                  StatusPending,
		CreatedAt:               now,
		ExpiresAt:               now.Add(ttl),
	}

	key := strings.TrimSpace(idempotencyKey)
	if key != "" && s.idem != nil {
		// Keys are per caller; another member reusing one opens its own request.
		scoped := actor.FederationID + ":" + actor.MemberID + ":" + key
		if err := s.idem.Reserve(ctx, scoped, idempotencyModule, req.ID.String()); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				existing, err := s.replay(ctx, actor.FederationID, scoped)
				return existing, false, err
			}
			return Request{}, false, fmt.Errorf("approvals: reserve idempotency key: %w", err)
		}
		key = scoped
	} else {
		key = ""
	}

	if err := s.repo.Insert(ctx, req); err != nil {
		if key != "" {
			_ = s.idem.Delete(ctx, key)
		}
		return Request{}, false, fmt.Errorf("approvals: insert: %w", err)
	}
	meta := map[string]any{"member": req.MemberID, "eventType": string(req.EventType), "payloadRef": req.PayloadRef, "expiresAt": req.ExpiresAt}
	if err := s.record(ctx, actor.FederationID, actor.MemberID, audit.ActionApprovalCreate, req.ID, meta); err != nil {
		return Request{}, false, err
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyApprovers(ctx, req); err != nil {
			s.logger.Warn("enqueue approver notification", slog.String("request", req.ID.String()), slog.Any("error", err))
		}
	}
	return req, true, nil
}

func (s *Service) replay(ctx context.Context, federationID, key string) (Request, error) {
	ref, err := s.idem.Lookup(ctx, key, idempotencyModule)
	if err != nil {
		return Request{}, fmt.Errorf("approvals: lookup idempotency key: %w", err)
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return Request{}, fmt.Errorf("approvals: idempotency ref %q: %w", ref, err)
	}
	return s.Get(ctx, federationID, id)
}

// Get returns a request with lazy expiry applied.
func (s *Service) Get(ctx context.Context, federationID string, id uuid.UUID) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.FederationID != federationID {
		return Request{}, fmt.Errorf("approval %s: %w", id, shared.ErrNotFound)
	}
	return s.applyExpiry(ctx, req, s.now().UTC()), nil
}

// List returns requests of a federation filtered by status.
func (s *Service) List(ctx context.Context, federationID string, status string) ([]Request, error) {
	var st Status
	if status != "" {
		st = Status(strings.ToLower(strings.TrimSpace(status)))
		switch st {
		case StatusPending, StatusApproved, StatusRejected, StatusExpired:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
		}
	}
	now := s.now().UTC()
	rows, err := s.repo.List(ctx, federationID, st, now)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i] = rows[i].withLazyExpiry(now)
	}
	return rows, nil
}

// Decide approves or rejects a pending request. Deciding a request that is
// terminal, or overdue, is a conflict.
func (s *Service) Decide(ctx context.Context, actor rbac.Actor, id uuid.UUID, approved bool, reason string) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.FederationID != actor.FederationID {
		return Request{}, fmt.Errorf("%w: approver is not a member of the request federation", shared.ErrForbidden)
	}
	minRole := req.RequiredMinApproverRole
	if minRole == "" {
		minRole = rbac.MinApproverRole()
	}
	if !rbac.AtLeast(actor.Role, minRole) {
		return Request{}, fmt.Errorf("%w: %s cannot decide approvals", shared.ErrForbidden, actor.Role)
	}
	if req.MemberID == actor.MemberID {
		return Request{}, fmt.Errorf("%w: members cannot decide their own requests", shared.ErrForbidden)
	}

	now := s.now().UTC()
	status := StatusRejected
	if approved {
		status = StatusApproved
	}
	decided, err := s.repo.Decide(ctx, id, Decision{Status: status, DecidedBy: actor.MemberID, DecidedAt: now, Reason: strings.TrimSpace(reason)})
	if errors.Is(err, ErrNotPending) {
		current := s.applyExpiry(ctx, req, now)
		if fresh, gerr := s.repo.Get(ctx, id); gerr == nil {
			current = s.applyExpiry(ctx, fresh, now)
		}
		return Request{}, fmt.Errorf("%w: request %s is %s: %w", shared.ErrConflict, id, current.Status, ErrNotPending)
	}
	if err != nil {
		return Request{}, fmt.Errorf("approvals: decide: %w", err)
	}
	meta := map[string]any{"status": string(decided.Status), "member": decided.MemberID, "eventType": string(decided.EventType)}
	if reason != "" {
		meta["reason"] = strings.TrimSpace(reason)
	}
	if err := s.record(ctx, actor.FederationID, actor.MemberID, audit.ActionApprovalDecide, id, meta); err != nil {
		return Request{}, err
	}
	return decided, nil
}

// SweepExpired materialises lazy expiry for every overdue request. Reads
// never depend on it having run.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ExpireAll(ctx, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("approvals: sweep: %w", err)
	}
	for _, req := range expired {
		meta := map[string]any{"member": req.MemberID, "eventType": string(req.EventType)}
		if err := s.record(ctx, req.FederationID, "system", audit.ActionApprovalExpire, req.ID, meta); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

func (s *Service) applyExpiry(ctx context.Context, req Request, now time.Time) Request {
	seen := req.withLazyExpiry(now)
	if seen.Status != req.Status {
		if err := s.repo.ExpireOne(ctx, req.ID, now); err != nil {
			s.logger.Warn("materialise approval expiry", slog.String("request", req.ID.String()), slog.Any("error", err))
		}
	}
	return seen
}

func (s *Service) record(ctx context.Context, federationID, actorID, action string, id uuid.UUID, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, audit.Entry{
		FederationID: federationID,
		ActorID:      actorID,
		Action:       action,
		Entity:       "approval_request",
		EntityID:     id.String(),
		Meta:         meta,
	})
}
