package permissions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hearthguard/hearthguard/internal/platform/httpx"
	"github.com/hearthguard/hearthguard/internal/rbac"
)

// Handler exposes role rule administration.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers rule routes below /v1/federations/{fid}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/catalog", h.catalog)
	r.Get("/role-permissions", h.list)
	r.Put("/roles/{role}/permissions", h.setRole)
	r.Patch("/role-permissions", h.patch)
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	cat := rbac.DefaultCatalog()
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": cat.Roles(), "eventTypes": cat.EventTypes()})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.List(r.Context(), chi.URLParam(r, "fid"))
	if err != nil {
		h.fail(w, "list role permissions failed", err)
		return
	}
	if rules == nil {
		rules = []RolePermission{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rolePermissions": rules})
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req SetBatchRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	saved, err := h.service.SetBatch(r.Context(), actor, chi.URLParam(r, "role"), req.Permissions)
	if err != nil {
		h.fail(w, "set role permissions failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": chi.URLParam(r, "role"), "permissions": saved})
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	if !rbac.CanManagePolicy(actor.Role) {
		httpx.RespondError(w, requireManager(actor))
		return
	}
	var req PatchRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	base, err := h.service.List(r.Context(), actor.FederationID)
	if err != nil {
		h.fail(w, "load role permissions failed", err)
		return
	}
	draft := NewDraft(actor.FederationID, base)
	for _, c := range req.Changes {
		if err := draft.Apply(c.Role, c.Rule); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	sets, err := draft.Commit(r.Context(), h.service, actor)
	if err != nil {
		h.fail(w, "commit role permission draft failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rolePermissions": sets})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		h.logger.Warn(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
