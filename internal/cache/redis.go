package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calc-back/pkg/config"
	"github.com/calc-back/pkg/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	snapshotKey = "market:snapshot"
	rateKey     = "market:rate"
)

// RedisClient caches the last-good market snapshot and exchange rate so a
// restarted server can warm-start instead of beginning from an empty store.
// This is feed-data caching only; no user state is ever written here.
type RedisClient struct {
	client *redis.Client
	logger *logrus.Entry
	ttl    time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig, addr string, logger *logrus.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		logger: logger.WithField("component", "redis"),
		ttl:    cfg.SnapshotTTL,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Health checks Redis health
func (rc *RedisClient) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// SetSnapshot stores the last-good market snapshot
func (rc *RedisClient) SetSnapshot(ctx context.Context, assets []models.Asset) error {
	return rc.setJSON(ctx, snapshotKey, assets)
}

// GetSnapshot retrieves the cached market snapshot
func (rc *RedisClient) GetSnapshot(ctx context.Context) ([]models.Asset, bool, error) {
	var assets []models.Asset
	found, err := rc.getJSON(ctx, snapshotKey, &assets)
	return assets, found, err
}

// SetRate stores the last-good exchange rate
func (rc *RedisClient) SetRate(ctx context.Context, rate models.ExchangeRate) error {
	return rc.setJSON(ctx, rateKey, rate)
}

// GetRate retrieves the cached exchange rate
func (rc *RedisClient) GetRate(ctx context.Context) (models.ExchangeRate, bool, error) {
	var rate models.ExchangeRate
	found, err := rc.getJSON(ctx, rateKey, &rate)
	return rate, found, err
}

// setJSON stores a JSON-encoded value with the snapshot TTL
func (rc *RedisClient) setJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return rc.client.Set(ctx, key, data, rc.ttl).Err()
}

// getJSON retrieves and decodes a JSON value
func (rc *RedisClient) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return true, nil
}
