package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cofund/cofund/internal/directory"
	"github.com/cofund/cofund/internal/shared"
)

type staticResolver struct {
	users map[int64]directory.User
}

func (r staticResolver) GetUser(ctx context.Context, id int64) (directory.User, error) {
	u, ok := r.users[id]
	if !ok {
		return directory.User{}, fmt.Errorf("directory: user %d: %w", id, shared.ErrNotFound)
	}
	return u, nil
}

func newActorHandler(t *testing.T, cfg *Config, resolver ActorResolver) http.Handler {
	t.Helper()
	mw := actorMiddleware(MiddlewareConfig{Config: cfg, Resolver: resolver})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := shared.ActorFromContext(r.Context())
		if actor == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = fmt.Fprintf(w, "%d:%s", actor.ID, actor.Role)
	}))
}

func TestActorMiddlewareResolvesToken(t *testing.T) {
	cfg := &Config{TokenSecret: "secret"}
	handler := newActorHandler(t, cfg, staticResolver{users: map[int64]directory.User{
		7: {ID: 7, Username: "alice", Role: directory.RoleSales, Status: directory.StatusActive},
	}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+SignToken("secret", 7))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "7:sales", rec.Body.String())
}

func TestActorMiddlewarePassesThroughWithoutToken(t *testing.T) {
	cfg := &Config{TokenSecret: "secret"}
	handler := newActorHandler(t, cfg, staticResolver{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "anonymous", rec.Body.String())
}

func TestActorMiddlewareRejectsBadToken(t *testing.T) {
	cfg := &Config{TokenSecret: "secret"}
	handler := newActorHandler(t, cfg, staticResolver{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActorMiddlewareRejectsDisabledAccount(t *testing.T) {
	cfg := &Config{TokenSecret: "secret"}
	handler := newActorHandler(t, cfg, staticResolver{users: map[int64]directory.User{
		7: {ID: 7, Username: "alice", Role: directory.RoleSales, Status: directory.StatusDisabled},
	}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+SignToken("secret", 7))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
