package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "recon"

// RedisSuggestionCache stores suggestions in one Redis hash per account,
// keyed by line ID, so invalidating an account is a single DEL
type RedisSuggestionCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisSuggestionCache connects to Redis and verifies the connection
func NewRedisSuggestionCache(cfg RedisConfig, keyPrefix string, ttl time.Duration) (*RedisSuggestionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisSuggestionCacheWithClient(client, keyPrefix, ttl), nil
}

// NewRedisSuggestionCacheWithClient wraps an existing client
func NewRedisSuggestionCacheWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisSuggestionCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisSuggestionCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *RedisSuggestionCache) accountKey(accountID uuid.UUID) string {
	return fmt.Sprintf("%s:suggestions:%s", c.keyPrefix, accountID)
}

// Get implements reconciliation.SuggestionCache
func (c *RedisSuggestionCache) Get(ctx context.Context, accountID, lineID uuid.UUID) ([]reconciliation.MatchSuggestion, bool, error) {
	raw, err := c.client.HGet(ctx, c.accountKey(accountID), lineID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read suggestions: %w", err)
	}

	var suggestions []reconciliation.MatchSuggestion
	if err := json.Unmarshal(raw, &suggestions); err != nil {
		return nil, false, fmt.Errorf("failed to decode suggestions: %w", err)
	}
	return suggestions, true, nil
}

// Set implements reconciliation.SuggestionCache. The account hash TTL is
// refreshed on every write.
func (c *RedisSuggestionCache) Set(ctx context.Context, accountID, lineID uuid.UUID, suggestions []reconciliation.MatchSuggestion) error {
	if suggestions == nil {
		suggestions = []reconciliation.MatchSuggestion{}
	}
	raw, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}

	key := c.accountKey(accountID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, lineID.String(), raw)
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store suggestions: %w", err)
	}
	return nil
}

// InvalidateAccount implements reconciliation.SuggestionCache
func (c *RedisSuggestionCache) InvalidateAccount(ctx context.Context, accountID uuid.UUID) error {
	if err := c.client.Del(ctx, c.accountKey(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate suggestions: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisSuggestionCache) Close() error {
	return c.client.Close()
}

var _ reconciliation.SuggestionCache = (*RedisSuggestionCache)(nil)
