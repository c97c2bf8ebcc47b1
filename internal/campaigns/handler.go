package campaigns

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cofund/cofund/internal/platform/httpx"
	"github.com/cofund/cofund/internal/shared"
)

// Handler serves campaign endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers campaign routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/campaigns", h.List)
	r.Post("/campaigns", h.Create)
	r.Get("/campaigns/{id}", h.Show)
	r.Get("/campaigns/{id}/ranking", h.Ranking)
	r.Post("/campaigns/{id}/contributions", h.Contribute)
	r.Post("/campaigns/{id}/contributions/additional", h.TopUp)
	r.Post("/campaigns/{id}/cancel", h.Cancel)
	r.Post("/campaigns/{id}/fail", h.Fail)
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

// Create starts a campaign.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateCampaignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	productID, err := strconv.ParseInt(req.ProductID, 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "productId must be a positive id")
		return
	}

	campaign, err := h.service.Create(r.Context(), CreateInput{
		ProductID:       productID,
		Title:           req.Title,
		Description:     req.Description,
		TargetAmount:    req.TargetAmount,
		MinContribution: req.MinContribution,
		Deadline:        req.Deadline,
	}, actor)
	if err != nil {
		h.logger.Error("create campaign", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewView(campaign))
}

type listResponse struct {
	Items []View `json:"items"`
	shared.Pagination
}

// List returns filtered campaigns newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Title:  q.Get("title"),
		Status: Status(q.Get("status")),
	}
	if v := q.Get("periodId"); v != "" {
		filter.PeriodID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("creatorId"); v != "" {
		filter.CreatorID, _ = strconv.ParseInt(v, 10, 64)
	}
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	list, pagination, err := h.service.List(r.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.Error("list campaigns", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: NewViews(list), Pagination: pagination})
}

// Show returns the campaign detail with ranking and investor count.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid campaign id")
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewDetailView(detail))
}

// Ranking returns the aggregated supplier ranking.
func (h *Handler) Ranking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid campaign id")
		return
	}
	ranking, err := h.service.Ranking(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRankViews(ranking))
}

// Contribute posts an initial ledger entry.
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	h.contribute(w, r, false)
}

// TopUp posts an additional ledger entry.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	h.contribute(w, r, true)
}

func (h *Handler) contribute(w http.ResponseWriter, r *http.Request, topUp bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid campaign id")
		return
	}
	var req ContributeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	contribution, err := h.service.Contribute(r.Context(), id, req.Amount, topUp, actor)
	if err != nil {
		h.logger.Error("contribute", slog.Int64("campaign", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewContributionView(contribution))
}

// Cancel withdraws an in-flight campaign.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.terminate(w, r, (*Service).Cancel)
}

// Fail marks an in-flight campaign as missed.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request) {
	h.terminate(w, r, (*Service).Fail)
}

func (h *Handler) terminate(w http.ResponseWriter, r *http.Request, fn func(*Service, context.Context, int64, shared.Actor) error) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid campaign id")
		return
	}
	if err := fn(h.service, r.Context(), id, actor); err != nil {
		h.logger.Error("terminate campaign", slog.Int64("campaign", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
