package ports

import (
	"context"
	"time"
)

// Cache is a key-value store with per-entry expiry. Values are opaque
// serialized payloads. An expired entry reads as not found.
//
// Get and Delete reject an empty key; Set rejects an empty key or value.
// A ttl <= 0 on Set means the adapter's default.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
