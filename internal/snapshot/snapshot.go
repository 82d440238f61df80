// Package snapshot serves a cached, read-only view of a federation's policy.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hearthguard/hearthguard/internal/overrides"
	"github.com/hearthguard/hearthguard/internal/permissions"
	"github.com/hearthguard/hearthguard/internal/windows"
)

// Snapshot is everything a client needs to render a federation's policy.
type Snapshot struct {
	FederationID    string                       `json:"federationId"`
	RolePermissions []permissions.RolePermission `json:"rolePermissions"`
	Overrides       []overrides.Override         `json:"overrides"`
	Windows         []windows.Window             `json:"windows"`
	GeneratedAt     time.Time                    `json:"generatedAt"`
}

// RuleLister lists base rules.
type RuleLister interface {
	List(ctx context.Context, federationID string) ([]permissions.RolePermission, error)
}

// OverrideLister lists overrides.
type OverrideLister interface {
	List(ctx context.Context, federationID string, includeInactive bool) ([]overrides.Override, error)
}

// WindowLister lists windows.
type WindowLister interface {
	List(ctx context.Context, federationID string) ([]windows.Window, error)
}

// Cache is the versioned JSON cache.
type Cache interface {
	BuildKey(ctx context.Context, namespace string, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
}

// Service builds and caches snapshots.
type Service struct {
	rules     RuleLister
	overrides OverrideLister
	windows   WindowLister
	cache     Cache
	group     singleflight.Group
	now       func() time.Time
}

// NewService builds a Service. A nil cache always loads from the stores.
func NewService(rules RuleLister, overrides OverrideLister, windows WindowLister, cache Cache) *Service {
	return &Service{
		rules:     rules,
		overrides: overrides,
		windows:   windows,
		cache:     cache,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the snapshot of federationID. The cached copy holds every
// override; inactive ones are filtered at read time unless includeInactive.
func (s *Service) Get(ctx context.Context, federationID string, includeInactive bool) (Snapshot, error) {
	snap, err := s.cached(ctx, federationID)
	if err != nil {
		return Snapshot{}, err
	}
	if !includeInactive {
		now := s.now()
		active := make([]overrides.Override, 0, len(snap.Overrides))
		for _, o := range snap.Overrides {
			if o.ActiveAt(now) {
				active = append(active, o)
			}
		}
		snap.Overrides = active
	}
	return snap, nil
}

func (s *Service) cached(ctx context.Context, federationID string) (Snapshot, error) {
	if s.cache == nil {
		return s.load(ctx, federationID)
	}
	key, err := s.cache.BuildKey(ctx, federationID, "snapshot")
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: cache key: %w", err)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var snap Snapshot
		err := s.cache.FetchJSON(ctx, key, &snap, func(ctx context.Context) (any, error) {
			return s.load(ctx, federationID)
		})
		return snap, err
	})
	if err != nil {
		return Snapshot{}, err
	}
	snap := v.(Snapshot)
	// Shared result; copy the override slice before filtering.
	snap.Overrides = append([]overrides.Override(nil), snap.Overrides...)
	return snap, nil
}

func (s *Service) load(ctx context.Context, federationID string) (Snapshot, error) {
	snap := Snapshot{FederationID: federationID, GeneratedAt: s.now()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.rules.List(gctx, federationID)
		snap.RolePermissions = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.overrides.List(gctx, federationID, true)
		snap.Overrides = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.windows.List(gctx, federationID)
		snap.Windows = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: load %s: %w", federationID, err)
	}
	if snap.RolePermissions == nil {
		snap.RolePermissions = []permissions.RolePermission{}
	}
	if snap.Overrides == nil {
		snap.Overrides = []overrides.Override{}
	}
	if snap.Windows == nil {
		snap.Windows = []windows.Window{}
	}
	return snap, nil
}
