package ports

import (
	"context"
	"time"
)

// Cache is a small key/value facade over Redis, with an in-memory
// fallback for single-node deployments.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}
