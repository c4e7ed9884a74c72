package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/detach"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/infrastructure/persistence/model"
	"disasterwatch/internal/observability"
	"disasterwatch/internal/ports"
)

const DefaultTTL = 60 * time.Minute

// StoreCache keeps entries in the relational store. Expired rows are removed
// lazily: a read that finds one reports a miss and deletes it in the background.
type StoreCache struct {
	db         *gorm.DB
	clock      clockwork.Clock
	defaultTTL time.Duration
	metrics    *observability.Metrics
	background *detach.Group
}

var _ ports.Cache = (*StoreCache)(nil)

type Option func(*StoreCache)

func WithClock(clock clockwork.Clock) Option {
	return func(c *StoreCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *StoreCache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *StoreCache) { c.metrics = m }
}

// WithBackground sets the group eviction deletes run in.
func WithBackground(g *detach.Group) Option {
	return func(c *StoreCache) {
		if g != nil {
			c.background = g
		}
	}
}

func NewStoreCache(db *gorm.DB, opts ...Option) *StoreCache {
	c := &StoreCache{
		db:         db,
		clock:      clockwork.NewRealClock(),
		defaultTTL: DefaultTTL,
		background: detach.NewGroup(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *StoreCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	var row model.CacheEntry
	if err := c.db.WithContext(ctx).Where("key = ?", trimmedKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.metrics.CacheLookup(observability.CacheMiss)
			return "", false, nil
		}
		return "", false, errs.Mark(errs.ErrUpstream, err, "query cache by key")
	}

	now := c.clock.Now().UTC()
	if !now.Before(row.ExpiresAt) {
		c.metrics.CacheLookup(observability.CacheExpired)
		c.evict(ctx, trimmedKey, now)
		return "", false, nil
	}

	c.metrics.CacheLookup(observability.CacheHit)
	return row.Value, true, nil
}

// Set upserts key. ttl <= 0 uses the cache's default TTL.
func (c *StoreCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}
	if value == "" {
		return errs.Mark(errs.ErrInvalidArgument, nil, "cache value is required")
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := c.clock.Now().UTC()
	row := model.CacheEntry{
		Key:       trimmedKey,
		Value:     value,
		ExpiresAt: now.Add(ttl),
		UpdatedAt: now,
	}

	err = c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"expires_at": row.ExpiresAt,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
	c.metrics.CacheWrite(err)
	if err != nil {
		return errs.Mark(errs.ErrUpstream, err, "upsert cache key")
	}
	return nil
}

// Delete succeeds whether or not key exists.
func (c *StoreCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.db.WithContext(ctx).Where("key = ?", trimmedKey).Delete(&model.CacheEntry{}).Error; err != nil {
		return errs.Mark(errs.ErrUpstream, err, "delete cache key")
	}
	return nil
}

// Wait blocks until pending evictions finish.
func (c *StoreCache) Wait() {
	c.background.Wait()
}

// evict removes key only while it is still expired, so a concurrent Set wins.
func (c *StoreCache) evict(ctx context.Context, key string, now time.Time) {
	c.background.Go(ctx, "cache.evict", func(ctx context.Context) error {
		res := c.db.WithContext(ctx).
			Where("key = ? AND expires_at <= ?", key, now).
			Delete(&model.CacheEntry{})
		if res.Error != nil {
			return errs.Wrapf(res.Error, "evict cache key %q", key)
		}
		if res.RowsAffected > 0 {
			c.metrics.CacheEvicted()
			logging.Debug(ctx, "expired cache entry evicted", slog.String("key", key))
		}
		return nil
	})
}

func checkKey(ctx context.Context, key string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return "", errs.Mark(errs.ErrInvalidArgument, nil, "cache key is required")
	}
	return trimmedKey, nil
}
