package funds

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const overviewKeyPrefix = "funds:overview:"

// OverviewCache holds computed fund overviews in Redis for a short
// TTL. All methods are nil-safe so the service can run without Redis.
type OverviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOverviewCache instantiates the cache helper.
func NewOverviewCache(client *redis.Client, ttl time.Duration) *OverviewCache {
	return &OverviewCache{client: client, ttl: ttl}
}

func overviewKey(periodID int64) string {
	return overviewKeyPrefix + strconv.FormatInt(periodID, 10)
}

// Get returns the cached overview for a period. Any cache error counts
// as a miss.
func (c *OverviewCache) Get(ctx context.Context, periodID int64) (Overview, bool) {
	if c == nil || c.client == nil {
		return Overview{}, false
	}
	data, err := c.client.Get(ctx, overviewKey(periodID)).Bytes()
	if err != nil {
		return Overview{}, false
	}
	var o Overview
	if err := json.Unmarshal(data, &o); err != nil {
		return Overview{}, false
	}
	return o, true
}

// Set stores the overview for a period.
func (c *OverviewCache) Set(ctx context.Context, periodID int64, o Overview) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(o)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, overviewKey(periodID), data, c.ttl).Err()
}

// Invalidate drops the cached overview after an approval lands.
func (c *OverviewCache) Invalidate(ctx context.Context, periodID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, overviewKey(periodID)).Err()
}
