package domain

import "context"

// Storage is the string key-value store the orchestration service caches
// into. Values are opaque; the service serializes entities itself.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	ContainsKey(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
}
