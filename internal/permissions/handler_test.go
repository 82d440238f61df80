package permissions

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/hearthguard/hearthguard/internal/rbac"
)

func newRouter(h *Handler, actor rbac.Actor) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1/federations/{fid}", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(rbac.ContextWithActor(req.Context(), actor)))
			})
		})
		h.MountRoutes(r)
	})
	return r
}

func TestHandlerSetAndPatch(t *testing.T) {
	repo := newMemoryRepo()
	h := NewHandler(nil, NewService(repo, nil, nil))
	router := newRouter(h, guardian)

	body := `{"permissions":[{"eventType":"payment","canSign":true,"maxDailyCount":2}]}`
	req := httptest.NewRequest(http.MethodPut, "/v1/federations/fed-1/roles/adult/permissions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, repo.rules["fed-1"], 1)

	patch := `{"changes":[{"role":"adult","eventType":"invoice","canSign":true},{"role":"offspring","eventType":"social_post","canSign":true}]}`
	req = httptest.NewRequest(http.MethodPatch, "/v1/federations/fed-1/role-permissions", strings.NewReader(patch))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, repo.rules["fed-1"], 3)
}

func TestHandlerRejects(t *testing.T) {
	h := NewHandler(nil, NewService(newMemoryRepo(), nil, nil))
	adult := rbac.Actor{FederationID: "fed-1", MemberID: "ada", Role: rbac.RoleAdult}

	req := httptest.NewRequest(http.MethodPut, "/v1/federations/fed-1/roles/offspring/permissions", strings.NewReader(`{"permissions":[]}`))
	rec := httptest.NewRecorder()
	newRouter(h, adult).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/v1/federations/fed-1/roles/adult/permissions", strings.NewReader(`{"permissions":[{"eventType":"payment","maxDailyCount":0}]}`))
	rec = httptest.NewRecorder()
	newRouter(h, guardian).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
