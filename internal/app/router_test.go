package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthguard/hearthguard/internal/auth"
	"github.com/hearthguard/hearthguard/internal/observability"
	"github.com/hearthguard/hearthguard/internal/overrides"
	"github.com/hearthguard/hearthguard/internal/permissions"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
	"github.com/hearthguard/hearthguard/internal/snapshot"
	"github.com/hearthguard/hearthguard/internal/windows"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type roster map[string]rbac.Role

func (r roster) RoleOf(ctx context.Context, federationID, memberID string) (rbac.Role, error) {
	if role, ok := r[federationID+"/"+memberID]; ok {
		return role, nil
	}
	return "", shared.ErrNotFound
}

type emptyStores struct{}

func (emptyStores) List(ctx context.Context, federationID string) ([]permissions.RolePermission, error) {
	return nil, nil
}

type emptyOverrides struct{}

func (emptyOverrides) List(ctx context.Context, federationID string, includeInactive bool) ([]overrides.Override, error) {
	return nil, nil
}

type emptyWindows struct{}

func (emptyWindows) List(ctx context.Context, federationID string) ([]windows.Window, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (http.Handler, *auth.Service) {
	t.Helper()
	authService := auth.NewService(testSecret, "hearthguard")
	snapshots := snapshot.NewService(emptyStores{}, emptyOverrides{}, emptyWindows{}, nil)
	router := NewRouter(RouterParams{
		Config:          &Config{AppEnv: "test", AppRequestTimeout: time.Second, HTTPRateLimit: 1000},
		AuthService:     authService,
		RBACMiddleware:  rbac.Middleware{Roles: roster{"fed-1/g1": rbac.RoleGuardian}},
		SnapshotHandler: snapshot.NewHandler(nil, snapshots),
		Metrics:         observability.NewMetrics(),
	})
	return router, authService
}

func bearer(t *testing.T, svc *auth.Service, fid, mid string) string {
	t.Helper()
	token, err := svc.Issue(auth.Principal{MemberID: mid, FederationID: fid}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "hearthguard_http_requests_total")
}

func TestRouterFederationGuard(t *testing.T) {
	router, authService := newTestRouter(t)

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"missing token", "/v1/federations/fed-1/snapshot", "", http.StatusUnauthorized},
		{"other federation", "/v1/federations/fed-2/snapshot", bearer(t, authService, "fed-1", "g1"), http.StatusForbidden},
		{"non member", "/v1/federations/fed-1/snapshot", bearer(t, authService, "fed-1", "stranger"), http.StatusForbidden},
		{"member", "/v1/federations/fed-1/snapshot", bearer(t, authService, "fed-1", "g1"), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", tc.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}
