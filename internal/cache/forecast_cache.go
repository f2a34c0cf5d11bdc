// internal/cache/forecast_cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stockpilot/inventory-agent/internal/config"
	"github.com/stockpilot/inventory-agent/internal/domain"
)

const forecastKeyPrefix = "forecast"

// ForecastCache keeps recently computed forecasts for a short TTL. Keys
// include the weight version and history length, so a learning update or new
// sales record naturally misses rather than serving a stale fusion.
type ForecastCache interface {
	Get(ctx context.Context, productID string, horizonDays int, weightVersion int64, historyLen int) (domain.ForecastResult, bool, error)
	Set(ctx context.Context, forecast domain.ForecastResult, historyLen int) error
}

type redisForecastCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopForecastCache struct{}

func NewForecastCache(cfg config.CacheConfig) (ForecastCache, error) {
	if !cfg.Enabled {
		return &noopForecastCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return &redisForecastCache{client: client, ttl: ttl}, nil
}

func NewNoopForecastCache() ForecastCache {
	return &noopForecastCache{}
}

func (c *redisForecastCache) Get(ctx context.Context, productID string, horizonDays int, weightVersion int64, historyLen int) (domain.ForecastResult, bool, error) {
	key := buildForecastKey(productID, horizonDays, weightVersion, historyLen)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return domain.ForecastResult{}, false, nil
	}
	if err != nil {
		return domain.ForecastResult{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var forecast domain.ForecastResult
	if err := json.Unmarshal(payload, &forecast); err != nil {
		return domain.ForecastResult{}, false, fmt.Errorf("decode forecast cache: %w", err)
	}
	return forecast, true, nil
}

func (c *redisForecastCache) Set(ctx context.Context, forecast domain.ForecastResult, historyLen int) error {
	key := buildForecastKey(forecast.ProductID, forecast.HorizonDays, forecast.WeightVersion, historyLen)
	payload, err := json.Marshal(forecast)
	if err != nil {
		return fmt.Errorf("encode forecast cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (n *noopForecastCache) Get(ctx context.Context, productID string, horizonDays int, weightVersion int64, historyLen int) (domain.ForecastResult, bool, error) {
	return domain.ForecastResult{}, false, nil
}

func (n *noopForecastCache) Set(ctx context.Context, forecast domain.ForecastResult, historyLen int) error {
	return nil
}

func buildForecastKey(productID string, horizonDays int, weightVersion int64, historyLen int) string {
	return fmt.Sprintf("%s:%s:%d:%d:%d", forecastKeyPrefix, productID, horizonDays, weightVersion, historyLen)
}
