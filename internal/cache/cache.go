package cache

import (
	"context"
	"errors"
)

// CatalogCache holds JSON-encoded public catalog reads (shop items, blog
// posts, service pages) keyed by resource path. Videos are never cached: the
// listing carries the caller's purchase flags.
type CatalogCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

var ErrCacheMiss = errors.New("cache miss")

// NoopCache is used when no Redis is configured. Every read misses.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, any) error { return ErrCacheMiss }

func (NoopCache) Set(context.Context, string, any) error { return nil }

func (NoopCache) Delete(context.Context, ...string) error { return nil }
