package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hearthguard/hearthguard/internal/approvals"
	audithttp "github.com/hearthguard/hearthguard/internal/audit/http"
	"github.com/hearthguard/hearthguard/internal/auth"
	"github.com/hearthguard/hearthguard/internal/members"
	"github.com/hearthguard/hearthguard/internal/observability"
	"github.com/hearthguard/hearthguard/internal/overrides"
	"github.com/hearthguard/hearthguard/internal/permissions"
	"github.com/hearthguard/hearthguard/internal/platform/httpx"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/resolver"
	"github.com/hearthguard/hearthguard/internal/snapshot"
	"github.com/hearthguard/hearthguard/internal/windows"
	"github.com/hearthguard/hearthguard/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthService    *auth.Service
	RBACMiddleware rbac.Middleware

	PermissionsHandler *permissions.Handler
	MembersHandler     *members.Handler
	OverridesHandler   *overrides.Handler
	WindowsHandler     *windows.Handler
	ApprovalsHandler   *approvals.Handler
	CheckHandler       *resolver.Handler
	SnapshotHandler    *snapshot.Handler
	AuditHandler       *audithttp.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with HearthGuard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/v1/federations/{fid}", func(r chi.Router) {
		r.Use(auth.Middleware(params.AuthService, params.Logger))
		r.Use(params.RBACMiddleware.Federation)

		if params.PermissionsHandler != nil {
			params.PermissionsHandler.MountRoutes(r)
		}
		if params.MembersHandler != nil {
			params.MembersHandler.MountRoutes(r)
		}
		if params.OverridesHandler != nil {
			params.OverridesHandler.MountRoutes(r)
		}
		if params.WindowsHandler != nil {
			params.WindowsHandler.MountRoutes(r)
		}
		if params.ApprovalsHandler != nil {
			params.ApprovalsHandler.MountRoutes(r)
		}
		if params.CheckHandler != nil {
			params.CheckHandler.MountRoutes(r)
		}
		if params.SnapshotHandler != nil {
			params.SnapshotHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r, params.RBACMiddleware)
		}
	})

	return r
}
