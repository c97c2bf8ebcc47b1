package funds

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/cofund/cofund/internal/directory"
	"github.com/cofund/cofund/internal/periods"
	"github.com/cofund/cofund/internal/shared"
)

func newTestCache(t *testing.T) (*OverviewCache, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewOverviewCache(client, time.Minute)
	return cache, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestOverviewCacheRoundTrip(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()

	ctx := context.Background()
	_, ok := cache.Get(ctx, 1)
	require.False(t, ok)

	want := Overview{PeriodID: 1, TotalAmount: money(4000), UsedAmount: money(1000),
		RemainingAmount: money(3000), UsageRate: money(25)}
	cache.Set(ctx, 1, want)

	got, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	require.True(t, got.TotalAmount.Equal(want.TotalAmount))
	require.True(t, got.UsageRate.Equal(want.UsageRate))

	cache.Invalidate(ctx, 1)
	_, ok = cache.Get(ctx, 1)
	require.False(t, ok)
}

func TestOverviewServedFromCacheUntilApproval(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()

	repo := newMemoryFundsRepo()
	audit := &fundsAudit{}
	svc := NewService(repo, fundsDirectory{repo: repo},
		fundsPeriods{period: periods.Period{ID: 1, Number: 1, Status: periods.StatusActive}},
		fundsLedger{repo: repo}, cache, audit, nil)

	admin := directory.User{ID: 1, Username: "boss", Role: directory.RoleAdmin, Status: directory.StatusActive}
	repo.users[1] = admin
	adminID := int64(1)
	repo.users[2] = directory.User{ID: 2, Username: "rep", Role: directory.RoleSales, ParentID: &adminID, Status: directory.StatusActive}
	repo.nextID = 2
	repo.campaignTitle[10] = "widget fund"
	repo.contributed[10] = map[int64]bool{2: true}
	repo.successTotals[1] = money(4000)

	ctx := context.Background()
	_, first, err := svc.Overview(ctx, 0)
	require.NoError(t, err)
	require.True(t, first.TotalAmount.Equal(money(4000)))

	// Underlying totals move, but the cached figure is still served.
	repo.successTotals[1] = money(9999)
	_, second, err := svc.Overview(ctx, 0)
	require.NoError(t, err)
	require.True(t, second.TotalAmount.Equal(money(4000)))

	// An approval invalidates the cache and the next read recomputes.
	detail, err := svc.Create(ctx, CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"},
		actorFor(repo.users[2]))
	require.NoError(t, err)
	_, err = svc.Decide(ctx, detail.ID, ActionApprove, "", actorFor(admin))
	require.NoError(t, err)

	_, third, err := svc.Overview(ctx, 0)
	require.NoError(t, err)
	require.True(t, third.TotalAmount.Equal(money(9999)))
	require.True(t, third.UsedAmount.Equal(money(500)))
}

func actorFor(u directory.User) shared.Actor {
	return shared.Actor{ID: u.ID, Name: u.Username, Role: string(u.Role)}
}
