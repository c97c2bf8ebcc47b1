package app

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/cofund/cofund/internal/directory"
	"github.com/cofund/cofund/internal/platform/httpx"
	"github.com/cofund/cofund/internal/shared"
)

// ActorResolver turns a user id into a directory record.
type ActorResolver interface {
	GetUser(ctx context.Context, id int64) (directory.User, error)
}

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger   *slog.Logger
	Config   *Config
	Resolver ActorResolver
}

// MiddlewareStack installs the standard middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		FeaturePolicy:         "none",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}
	limit := 120
	if cfg.Config != nil && cfg.Config.RateLimit > 0 {
		limit = cfg.Config.RateLimit
	}

	return []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		actorMiddleware(cfg),
	}
}

// actorMiddleware resolves a bearer token to a directory user and puts
// the actor on the request context. Requests without a token pass
// through; handlers requiring an actor reject them. A malformed token
// or a disabled account fails outright.
func actorMiddleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authorization header must carry a bearer token")
				return
			}
			secret := ""
			if cfg.Config != nil {
				secret = cfg.Config.TokenSecret
			}
			userID, err := VerifyToken(secret, token)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
				return
			}
			user, err := cfg.Resolver.GetUser(r.Context(), userID)
			if err != nil || !user.IsActive() {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "unknown or disabled account")
				return
			}
			actor := &shared.Actor{ID: user.ID, Name: user.Username, Role: string(user.Role)}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}
