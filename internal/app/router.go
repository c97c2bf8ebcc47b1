package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cofund/cofund/internal/campaigns"
	"github.com/cofund/cofund/internal/funds"
	"github.com/cofund/cofund/internal/periods"
	"github.com/cofund/cofund/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Resolver         ActorResolver
	PeriodsHandler   *periods.Handler
	CampaignsHandler *campaigns.Handler
	FundsHandler     *funds.Handler
	JobsHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Resolver: params.Resolver,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		params.PeriodsHandler.MountRoutes(api)
		params.CampaignsHandler.MountRoutes(api)
		params.FundsHandler.MountRoutes(api)
		if params.JobsHandler != nil {
			api.Route("/jobs", func(jr chi.Router) {
				params.JobsHandler.MountRoutes(jr)
			})
		}
	})

	return r
}
