package members

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hearthguard/hearthguard/internal/platform/httpx"
	"github.com/hearthguard/hearthguard/internal/rbac"
)

// Handler manages member directory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers member routes below /v1/federations/{fid}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/members", h.listMembers)
	r.Get("/members/{mid}", h.getMember)
	r.Put("/members/{mid}", h.upsertMember)
	r.Post("/members/{mid}/role", h.changeRole)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.List(r.Context(), chi.URLParam(r, "fid"))
	if err != nil {
		h.fail(w, "list members failed", err)
		return
	}
	if members == nil {
		members = []Member{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Get(r.Context(), chi.URLParam(r, "fid"), chi.URLParam(r, "mid"))
	if err != nil {
		h.fail(w, "get member failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) upsertMember(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var in UpsertInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.Upsert(r.Context(), actor, chi.URLParam(r, "mid"), in)
	if err != nil {
		h.fail(w, "upsert member failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var in ChangeRoleInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.ChangeRole(r.Context(), actor, chi.URLParam(r, "mid"), in.Role)
	if err != nil {
		h.fail(w, "change role failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		h.logger.Warn(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
