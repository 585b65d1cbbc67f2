package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cadak-tickets/internal/config"
	"cadak-tickets/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const receiptKeyPrefix = "cadak:receipt:"

// ReceiptCache remembers settled references so repeated buyer callbacks skip
// the gateway round trip. It only ever holds paid orders.
type ReceiptCache interface {
	// Get returns the cached result for reference, if any.
	Get(ctx context.Context, reference string) (*model.ReconcileResult, bool, error)

	// Put stores a settled result.
	Put(ctx context.Context, result *model.ReconcileResult) error
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisReceiptCache stores receipts as JSON strings with a TTL.
type RedisReceiptCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisReceiptCache creates a receipt cache on client.
func NewRedisReceiptCache(client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *RedisReceiptCache {
	return &RedisReceiptCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("cache", "receipt").Logger(),
	}
}

func receiptKey(reference string) string {
	return receiptKeyPrefix + reference
}

func (c *RedisReceiptCache) Get(ctx context.Context, reference string) (*model.ReconcileResult, bool, error) {
	data, err := c.client.Get(ctx, receiptKey(reference)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read receipt: %w", err)
	}

	var result model.ReconcileResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn().Err(err).Str("reference", reference).Msg("discarding malformed receipt")
		return nil, false, nil
	}
	return &result, true, nil
}

func (c *RedisReceiptCache) Put(ctx context.Context, result *model.ReconcileResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	if err := c.client.Set(ctx, receiptKey(result.Reference), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store receipt: %w", err)
	}
	return nil
}

// NopReceiptCache never hits.
type NopReceiptCache struct{}

func (NopReceiptCache) Get(context.Context, string) (*model.ReconcileResult, bool, error) {
	return nil, false, nil
}

func (NopReceiptCache) Put(context.Context, *model.ReconcileResult) error { return nil }
