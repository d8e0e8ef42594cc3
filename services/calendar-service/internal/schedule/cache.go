package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache decorates a Provider with a Redis lookaside cache. Entries carry
// a per-portal version in their key; BumpVersion invalidates a whole
// portal with a single INCR instead of scanning keys.
type Cache struct {
	provider Provider
	rdb      *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
}

func NewCache(provider Provider, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{provider: provider, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *Cache) DaySchedules(ctx context.Context, portalID string, resourceIDs []int64, date string) (map[int64]DaySchedule, error) {
	key, err := c.cacheKey(ctx, portalID, resourceIDs, date)
	if err == nil {
		raw, getErr := c.rdb.Get(ctx, key).Bytes()
		if getErr == nil {
			var cached map[int64]DaySchedule
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		} else if getErr != redis.Nil && c.logger != nil {
			c.logger.Warn("schedule cache read failed", "err", getErr)
		}
	} else if c.logger != nil {
		c.logger.Warn("schedule cache version lookup failed", "err", err)
	}

	schedules, err := c.provider.DaySchedules(ctx, portalID, resourceIDs, date)
	if err != nil {
		return nil, err
	}

	if key, keyErr := c.cacheKey(ctx, portalID, resourceIDs, date); keyErr == nil {
		if raw, marshalErr := json.Marshal(schedules); marshalErr == nil {
			if setErr := c.rdb.Set(ctx, key, raw, c.ttl).Err(); setErr != nil && c.logger != nil {
				c.logger.Warn("schedule cache write failed", "err", setErr)
			}
		}
	}
	return schedules, nil
}

func (c *Cache) cacheKey(ctx context.Context, portalID string, resourceIDs []int64, date string) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey(portalID)).Result()
	if err == redis.Nil {
		ver = "0"
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("sched:%s:v%s:%s:%s", portalID, ver, date, idsKey(resourceIDs)), nil
}

// BumpVersion invalidates every cached schedule for the portal.
func BumpVersion(ctx context.Context, rdb *redis.Client, portalID string) error {
	return rdb.Incr(ctx, versionKey(portalID)).Err()
}

func versionKey(portalID string) string {
	return "sched:ver:" + portalID
}

func idsKey(resourceIDs []int64) string {
	ids := make([]int64, len(resourceIDs))
	copy(ids, resourceIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
