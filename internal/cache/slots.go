// Package cache keeps the booked slots of a cart and day in Redis so the
// availability endpoints do not hit MySQL on every calendar render.  Every
// failure degrades to a miss; MySQL stays the source of truth and admission
// never reads from the cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/config"
	"github.com/iliyamo/foodcart-booking/internal/model"
)

// RedisSlotCache implements service.SlotCache on a Redis client.  A nil
// client or a disabled config turns every call into a no-op.
type RedisSlotCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	off    bool
	log    *zap.Logger
}

// NewRedisSlotCache builds the cache from the CACHE_* settings.
func NewRedisSlotCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *RedisSlotCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "cache"
	}
	return &RedisSlotCache{rdb: rdb, prefix: prefix, ttl: ttl, off: !cfg.Enabled || rdb == nil, log: log}
}

// Key returns the Redis key of one cart's calendar day.
func (c *RedisSlotCache) Key(cartID uint64, date model.Date) string {
	return fmt.Sprintf("%s:slots:%d:%s", c.prefix, cartID, date)
}

func (c *RedisSlotCache) Get(ctx context.Context, cartID uint64, date model.Date) ([]model.BookedSlot, bool) {
	if c.off {
		return nil, false
	}
	bs, err := c.rdb.Get(ctx, c.Key(cartID, date)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debug("slot cache get failed", zap.String("key", c.Key(cartID, date)), zap.Error(err))
		}
		return nil, false
	}
	var slots []model.BookedSlot
	if err := json.Unmarshal(bs, &slots); err != nil {
		c.log.Warn("slot cache entry unreadable", zap.String("key", c.Key(cartID, date)), zap.Error(err))
		return nil, false
	}
	if slots == nil {
		slots = []model.BookedSlot{}
	}
	return slots, true
}

func (c *RedisSlotCache) Set(ctx context.Context, cartID uint64, date model.Date, slots []model.BookedSlot) {
	if c.off {
		return
	}
	if slots == nil {
		slots = []model.BookedSlot{}
	}
	payload, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.rdb.SetEx(ctx, c.Key(cartID, date), payload, c.ttl).Err(); err != nil {
		c.log.Debug("slot cache set failed", zap.String("key", c.Key(cartID, date)), zap.Error(err))
	}
}

// Invalidate drops the cached day.  It runs on a context detached from ctx's
// cancellation.
func (c *RedisSlotCache) Invalidate(ctx context.Context, cartID uint64, date model.Date) {
	if c.off {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := c.rdb.Del(ctx, c.Key(cartID, date)).Err(); err != nil {
		c.log.Warn("slot cache invalidate failed", zap.String("key", c.Key(cartID, date)), zap.Error(err))
	}
}
