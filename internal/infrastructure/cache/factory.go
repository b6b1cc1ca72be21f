package cache

import (
	"fmt"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SuggestionCacheFactory builds the configured SuggestionCache backend
type SuggestionCacheFactory struct {
	cacheConfig           config.CacheConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption configures the factory
type FactoryOption func(*SuggestionCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *SuggestionCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory cache. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *SuggestionCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSuggestionCacheFactory creates a new factory
func NewSuggestionCacheFactory(cacheCfg config.CacheConfig, redisCfg config.RedisConfig, opts ...FactoryOption) *SuggestionCacheFactory {
	f := &SuggestionCacheFactory{
		cacheConfig:           cacheCfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the cache selected by cache.backend
func (f *SuggestionCacheFactory) Create() (reconciliation.SuggestionCache, error) {
	switch f.cacheConfig.Backend {
	case "none":
		return NopSuggestionCache{}, nil
	case "redis":
		store, err := NewRedisSuggestionCache(RedisConfig{
			Addr:     f.redisConfig.Addr(),
			Password: f.redisConfig.Password,
			DB:       f.redisConfig.DB,
		}, f.cacheConfig.KeyPrefix, f.cacheConfig.SuggestionTTL)
		if err == nil {
			f.logger.Info("Using Redis suggestion cache", zap.String("addr", f.redisConfig.Addr()))
			return store, nil
		}
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis suggestion cache unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory suggestion cache", zap.Error(err))
		return NewInMemorySuggestionCache(f.cacheConfig.SuggestionTTL), nil
	default:
		return NewInMemorySuggestionCache(f.cacheConfig.SuggestionTTL), nil
	}
}
