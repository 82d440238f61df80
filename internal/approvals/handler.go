package approvals

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hearthguard/hearthguard/internal/platform/httpx"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// Handler exposes the approval workflow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers approval routes below /v1/federations/{fid}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/approvals", h.list)
	r.Post("/approvals", h.create)
	r.Get("/approvals/{id}", h.get)
	r.Post("/approvals/{id}/decision", h.decide)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.List(r.Context(), chi.URLParam(r, "fid"), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, "list approvals failed", err)
		return
	}
	if rows == nil {
		rows = []Request{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvals": rows})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var in CreateInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, created, err := h.service.Create(r.Context(), actor, in, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, "create approval failed", err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	httpx.JSON(w, status, req)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), chi.URLParam(r, "fid"), id)
	if err != nil {
		h.fail(w, "get approval failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in DecideInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Decide(r.Context(), actor, id, *in.Approved, in.Reason)
	if err != nil {
		h.fail(w, "decide approval failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("approval id: %w", shared.ErrNotFound)
	}
	return id, nil
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		h.logger.Warn(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
