// Package cache кэширует агрегаты клиентов и предоставляет распределенную блокировку.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/avc/laundry-loyalty/internal/domain"
	redis "github.com/redis/go-redis/v9"
)

// DefaultStatsTTL время жизни агрегатов в кэше по умолчанию
const DefaultStatsTTL = 10 * time.Minute

// StatsCache кэш агрегатов клиента по окнам в днях
type StatsCache interface {
	Get(ctx context.Context, customerID int64, windowDays int) (domain.CustomerStats, bool, error)
	Set(ctx context.Context, stats domain.CustomerStats) error
	Invalidate(ctx context.Context, customerID int64) error
}

// RedisStatsCache хранит агрегаты клиента в хэше customer_stats:{id}, поле - окно в днях
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsCache создает RedisStatsCache
func NewRedisStatsCache(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &RedisStatsCache{client: client, ttl: ttl}
}

func statsKey(customerID int64) string {
	return "customer_stats:" + strconv.FormatInt(customerID, 10)
}

// Get возвращает агрегаты из кэша. Второе значение false при промахе.
func (c *RedisStatsCache) Get(ctx context.Context, customerID int64, windowDays int) (domain.CustomerStats, bool, error) {
	raw, err := c.client.HGet(ctx, statsKey(customerID), strconv.Itoa(windowDays)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CustomerStats{}, false, nil
		}
		return domain.CustomerStats{}, false, fmt.Errorf("cache: failed to get stats of customer %d: %w", customerID, err)
	}

	var stats domain.CustomerStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.CustomerStats{}, false, fmt.Errorf("cache: corrupted stats of customer %d: %w", customerID, err)
	}

	return stats, true, nil
}

// Set сохраняет агрегаты и продлевает время жизни ключа клиента
func (c *RedisStatsCache) Set(ctx context.Context, stats domain.CustomerStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("cache: failed to encode stats of customer %d: %w", stats.CustomerID, err)
	}

	key := statsKey(stats.CustomerID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, strconv.Itoa(stats.WindowDays), raw)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: failed to store stats of customer %d: %w", stats.CustomerID, err)
	}

	return nil
}

// Invalidate удаляет все окна агрегатов клиента
func (c *RedisStatsCache) Invalidate(ctx context.Context, customerID int64) error {
	if err := c.client.Del(ctx, statsKey(customerID)).Err(); err != nil {
		return fmt.Errorf("cache: failed to invalidate stats of customer %d: %w", customerID, err)
	}
	return nil
}

// NoopStatsCache используется без redis: каждый запрос агрегатов идет в хранилище
type NoopStatsCache struct{}

func (NoopStatsCache) Get(context.Context, int64, int) (domain.CustomerStats, bool, error) {
	return domain.CustomerStats{}, false, nil
}

func (NoopStatsCache) Set(context.Context, domain.CustomerStats) error { return nil }

func (NoopStatsCache) Invalidate(context.Context, int64) error { return nil }
