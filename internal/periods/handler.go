package periods

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cofund/cofund/internal/directory"
	"github.com/cofund/cofund/internal/platform/httpx"
	"github.com/cofund/cofund/internal/shared"
)

// Handler serves period endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers period routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/periods", h.List)
	r.Get("/periods/current", h.Current)
	r.Post("/periods/rollover", h.Rollover)
}

// Current returns the active period, opening one when needed.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	period, err := h.service.Current(r.Context())
	if err != nil {
		h.logger.Error("current period", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(period))
}

type listResponse struct {
	Items []View `json:"items"`
	shared.Pagination
}

// List returns periods newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	list, pagination, err := h.service.List(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("list periods", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: NewViews(list), Pagination: pagination})
}

// Rollover is the internal trigger pointing in-flight campaigns at the
// current period. Admin only; the weekly cron is the usual caller.
func (h *Handler) Rollover(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil || !directory.Role(actor.Role).IsAdministrative() {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "rollover requires an administrative account")
		return
	}
	period, err := h.service.Rollover(r.Context())
	if err != nil {
		h.logger.Error("period rollover", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(period))
}
