package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthguard/hearthguard/internal/auth"
	"github.com/hearthguard/hearthguard/internal/platform/httpx"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// Actor is an authenticated member together with the role it holds in the
// federation addressed by the request.
type Actor struct {
	FederationID string
	MemberID     string
	Role         Role
}

// RoleResolver returns the role a member holds inside a federation.
// Implementations return shared.ErrNotFound for non-members.
type RoleResolver interface {
	RoleOf(ctx context.Context, federationID, memberID string) (Role, error)
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorContextKey{}).(Actor)
	return a, ok
}

// Middleware wires federation scoped authorization helpers for HTTP handlers.
type Middleware struct {
	Roles  RoleResolver
	Logger *slog.Logger
}

// Federation binds the bearer principal to the federation named by the {fid}
// route parameter and stores the resolved Actor in the request context.
func (m Middleware) Federation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, fmt.Errorf("%w: no principal", shared.ErrForbidden))
			return
		}
		fid := chi.URLParam(r, "fid")
		if fid == "" || fid != principal.FederationID {
			httpx.RespondError(w, fmt.Errorf("%w: token not valid for federation", shared.ErrForbidden))
			return
		}
		role, err := m.Roles.RoleOf(r.Context(), fid, principal.MemberID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				httpx.RespondError(w, fmt.Errorf("%w: not a member of federation", shared.ErrForbidden))
				return
			}
			if m.Logger != nil {
				m.Logger.Error("rbac resolve role", slog.String("federation", fid), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		actor := Actor{FederationID: fid, MemberID: principal.MemberID, Role: role}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// RequireAtLeast ensures the current actor ranks at or above min.
func (m Middleware) RequireAtLeast(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok || !AtLeast(actor.Role, min) {
				httpx.RespondError(w, fmt.Errorf("%w: requires %s or above", shared.ErrForbidden, min))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePolicyManager is RequireAtLeast for the policy administration floor.
func (m Middleware) RequirePolicyManager(next http.Handler) http.Handler {
	return m.RequireAtLeast(RoleSteward)(next)
}
