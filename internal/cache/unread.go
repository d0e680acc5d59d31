package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const UnreadCacheRedisKey = "notifications:unread"

// UnreadCache is a cache-aside store of per-user unread notification counts,
// kept in one Redis hash keyed by user id. Every field expires after
// expiration.
type UnreadCache struct {
	redisClient *redis.Client
	expiration  time.Duration
}

func NewUnreadCache(options *redis.Options, expiration time.Duration) *UnreadCache {
	return &UnreadCache{
		redisClient: redis.NewClient(options),
		expiration:  expiration,
	}
}

func (c *UnreadCache) Ping(ctx context.Context) error {
	return c.redisClient.Ping(ctx).Err()
}

func (c *UnreadCache) Close() error {
	return c.redisClient.Close()
}

// Get returns the cached count and whether it was present.
func (c *UnreadCache) Get(ctx context.Context, userID string) (int64, bool) {
	val, err := c.redisClient.HGet(ctx, UnreadCacheRedisKey, userID).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("Error reading unread count for %s: %s", userID, err)
		}
		return 0, false
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		log.Errorf("Corrupt unread count for %s: %q", userID, val)
		return 0, false
	}
	return count, true
}

func (c *UnreadCache) Set(ctx context.Context, userID string, count int64) {
	if err := c.redisClient.HSet(ctx, UnreadCacheRedisKey, userID, count).Err(); err != nil {
		log.Warnf("Error caching unread count for %s: %s", userID, err)
		return
	}
	if err := c.redisClient.HExpire(ctx, UnreadCacheRedisKey, c.expiration, userID).Err(); err != nil {
		// a field without a TTL could stay stale forever
		log.Warnf("Error setting expiration on unread count for %s: %s", userID, err)
		c.Invalidate(ctx, userID)
	}
}

// Invalidate drops the cached count so the next Get falls through to the store.
func (c *UnreadCache) Invalidate(ctx context.Context, userID string) {
	if err := c.redisClient.HDel(ctx, UnreadCacheRedisKey, userID).Err(); err != nil {
		log.Warnf("Error invalidating unread count for %s: %s", userID, err)
	}
}
