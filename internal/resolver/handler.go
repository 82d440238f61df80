package resolver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hearthguard/hearthguard/internal/platform/httpx"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// CheckRequest is the body of POST /check. MemberID defaults to the caller.
type CheckRequest struct {
	MemberID  string `json:"memberId,omitempty"`
	EventType string `json:"eventType" validate:"required"`
}

// CheckResponse carries the decision and its rendered reason.
type CheckResponse struct {
	Decision
	MemberID  string `json:"memberId"`
	EventType string `json:"eventType"`
	Message   string `json:"message,omitempty"`
}

// Handler exposes permission checks.
type Handler struct {
	logger    *slog.Logger
	checker   *Checker
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, checker *Checker) *Handler {
	return &Handler{logger: logger, checker: checker, validator: validator.New()}
}

// MountRoutes registers the check route below /v1/federations/{fid}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req CheckRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		memberID = actor.MemberID
	}
	if memberID != actor.MemberID && !rbac.CanManagePolicy(actor.Role) {
		httpx.RespondError(w, fmt.Errorf("%w: checking another member requires steward or guardian", shared.ErrForbidden))
		return
	}

	decision, err := h.checker.Check(r.Context(), CheckInput{
		FederationID: actor.FederationID,
		RequestedBy:  actor.MemberID,
		MemberID:     memberID,
		EventType:    req.EventType,
	})
	resp := CheckResponse{Decision: decision, MemberID: memberID, EventType: req.EventType}
	if decision.ReasonCode != "" {
		resp.Message = Describe(decision.ReasonCode, ParseStyle(r.URL.Query().Get("style")), Subject{
			Role:      h.roleFor(actor, memberID),
			EventType: rbac.EventType(req.EventType),
		})
	}
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("permission check failed closed", slog.String("member_id", memberID), slog.Any("error", err))
		}
		httpx.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// roleFor only names the caller's own role; another member's role is left
// out of the rendered message.
func (h *Handler) roleFor(actor rbac.Actor, memberID string) rbac.Role {
	if memberID == actor.MemberID {
		return actor.Role
	}
	return ""
}
