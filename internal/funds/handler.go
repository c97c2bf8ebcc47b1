package funds

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cofund/cofund/internal/platform/httpx"
	"github.com/cofund/cofund/internal/shared"
)

// Handler serves fund application endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers fund routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/funds/overview", h.Overview)
	r.Post("/funds/applications", h.Create)
	r.Get("/funds/applications", h.List)
	r.Get("/funds/applications/pending", h.Pending)
	r.Get("/funds/applications/{id}", h.Show)
	r.Post("/funds/applications/{id}/decision", h.Decide)
	r.Post("/funds/applications/{id}/cancel", h.Cancel)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid actor token")
		return shared.Actor{}, false
	}
	return *actor, true
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// Overview reports raised versus consumed amounts for a period.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	var periodID int64
	if v := r.URL.Query().Get("periodId"); v != "" {
		periodID, _ = strconv.ParseInt(v, 10, 64)
	}
	period, overview, err := h.service.Overview(r.Context(), periodID)
	if err != nil {
		h.logger.Error("fund overview", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewOverviewView(period, overview))
}

// Create files a fund application.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateApplicationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	campaignID, err := strconv.ParseInt(req.CampaignID, 10, 64)
	if err != nil || campaignID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "crowdfundingId must be a positive id")
		return
	}

	detail, err := h.service.Create(r.Context(), CreateInput{
		CampaignID: campaignID,
		Amount:     req.Amount,
		Reason:     req.Reason,
	}, actor)
	if err != nil {
		h.logger.Error("create fund application", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewApplicationView(detail))
}

type listResponse struct {
	Items []ApplicationView `json:"items"`
	shared.Pagination
}

// List returns scoped applications newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status"))}
	if v := q.Get("periodId"); v != "" {
		filter.PeriodID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("applicantId"); v != "" {
		filter.ApplicantID, _ = strconv.ParseInt(v, 10, 64)
	}
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	list, pagination, err := h.service.List(r.Context(), filter, page, pageSize, actor)
	if err != nil {
		h.logger.Error("list fund applications", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: NewApplicationViews(list), Pagination: pagination})
}

// Pending returns applications awaiting the caller, oldest first.
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.service.PendingForMe(r.Context(), actor)
	if err != nil {
		h.logger.Error("pending fund applications", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewApplicationViews(list))
}

// Show returns one application with its decision log.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be a positive integer")
		return
	}
	detail, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewApplicationView(detail))
}

// Decide applies an approve or reject verdict.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be a positive integer")
		return
	}
	var req DecisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	detail, err := h.service.Decide(r.Context(), id, req.Action, req.Comment, actor)
	if err != nil {
		h.logger.Error("decide fund application", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewApplicationView(detail))
}

// Cancel withdraws a pending application.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be a positive integer")
		return
	}
	if err := h.service.Cancel(r.Context(), id, actor); err != nil {
		h.logger.Error("cancel fund application", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "application cancelled"})
}
