package ports

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
)

// GetJSON reads key and decodes it into T. An entry that no longer decodes
// is reported as a miss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var out T

	raw, found, err := c.Get(ctx, key)
	if err != nil || !found {
		return out, false, err
	}

	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logging.Warn(ctx, "undecodable cache entry ignored", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
		var zero T
		return zero, false, nil
	}
	return out, true, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	if value == nil {
		return errs.Mark(errs.ErrInvalidArgument, nil, "cache value is required")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return errs.Mark(errs.ErrInvalidArgument, err, "encode cache value")
	}
	if string(raw) == "null" {
		return errs.Mark(errs.ErrInvalidArgument, nil, "cache value is required")
	}
	return c.Set(ctx, key, string(raw), ttl)
}
