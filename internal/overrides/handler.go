package overrides

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hearthguard/hearthguard/internal/platform/httpx"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// Handler exposes override administration.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers override routes below /v1/federations/{fid}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/overrides", h.list)
	r.Post("/overrides", h.create)
	r.Post("/overrides/{id}/revoke", h.revoke)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	rows, err := h.service.List(r.Context(), chi.URLParam(r, "fid"), includeInactive)
	if err != nil {
		h.fail(w, "list overrides failed", err)
		return
	}
	if rows == nil {
		rows = []Override{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"overrides": rows})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var in CreateInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, "create override failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("override id: %w", shared.ErrNotFound))
		return
	}
	o, err := h.service.Revoke(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "revoke override failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		h.logger.Warn(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
