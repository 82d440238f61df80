package snapshot

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthguard/hearthguard/internal/platform/httpx"
)

// Handler exposes GET /snapshot.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the snapshot route below /v1/federations/{fid}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/snapshot", h.get)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	snap, err := h.service.Get(r.Context(), chi.URLParam(r, "fid"), includeInactive)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("load snapshot failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}
