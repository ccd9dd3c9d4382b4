package services

import (
	"context"
	"time"

	"ridewallet/pkg/cache"
)

// CacheService is the subset of the Redis cache the services rely on.
type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel string, message interface{}) error
}

type noopCache struct{}

// NewNoopCacheService is used when Redis is not configured: every read
// misses and every write is dropped.
func NewNoopCacheService() CacheService {
	return noopCache{}
}

func (noopCache) Get(ctx context.Context, key string, dest interface{}) error {
	return cache.ErrCacheMiss
}

func (noopCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (noopCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}

func (noopCache) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (noopCache) Delete(ctx context.Context, keys ...string) error {
	return nil
}

func (noopCache) Publish(ctx context.Context, channel string, message interface{}) error {
	return nil
}
