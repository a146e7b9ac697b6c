package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
)

type RedisReportCache struct {
	client *redis.Client
}

func NewRedisReportCache(addr string, password string, db int) *RedisReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReportCache{client: client}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

func (c *RedisReportCache) Get(ctx context.Context, date string) (domain.DailySummary, bool, error) {
	val, err := c.client.Get(ctx, reportKey(date)).Result()
	if err == redis.Nil {
		return domain.DailySummary{}, false, nil
	}
	if err != nil {
		return domain.DailySummary{}, false, err
	}

	var summary domain.DailySummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return domain.DailySummary{}, false, err
	}
	return summary, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, date string, summary domain.DailySummary, ttl time.Duration) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, reportKey(date), payload, ttl).Err()
}

func reportKey(date string) string {
	return "report:daily:" + date
}
