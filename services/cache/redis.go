// Package cachesvc keeps computed course stats in redis.
package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
)

const keyPrefix = "vpl:course-stats:"

type redisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ lab.StatsCache = (*redisStatsCache)(nil)

func NewClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

// NewRedisStatsCache stores stats for ttl. Entries are also dropped on every write to their course,
// the ttl only bounds how long a missed invalidation can serve stale numbers.
func NewRedisStatsCache(client *redis.Client, ttl time.Duration) lab.StatsCache {
	return &redisStatsCache{client: client, ttl: ttl}
}

func key(courseID string) string {
	return keyPrefix + courseID
}

func (c *redisStatsCache) GetStats(ctx context.Context, courseID string) (lab.CourseStats, bool, error) {
	raw, err := c.client.Get(ctx, key(courseID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return lab.CourseStats{}, false, nil
	}
	if err != nil {
		return lab.CourseStats{}, false, errors.Wrapf(err, "reading stats of course %s", courseID)
	}

	var stats lab.CourseStats
	if err = json.Unmarshal(raw, &stats); err != nil {
		// a corrupt entry is a miss; it will be overwritten
		return lab.CourseStats{}, false, nil
	}
	return stats, true, nil
}

func (c *redisStatsCache) SetStats(ctx context.Context, courseID string, stats lab.CourseStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "encoding stats")
	}
	return errors.Wrapf(c.client.Set(ctx, key(courseID), raw, c.ttl).Err(), "caching stats of course %s", courseID)
}

func (c *redisStatsCache) InvalidateStats(ctx context.Context, courseID string) error {
	return errors.Wrapf(c.client.Del(ctx, key(courseID)).Err(), "invalidating stats of course %s", courseID)
}
