package geo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// redisCmdable is the subset of redis.Cmdable used by CachedProvider.
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedProvider stores successful routes in Redis. Routes are symmetric so
// A→B and B→A share one entry. Cache failures fall through to the wrapped
// provider; errors are never cached.
type CachedProvider struct {
	next   Provider
	rdb    redisCmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedProvider wraps next with a Redis cache.
func NewCachedProvider(next Provider, rdb redisCmdable, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

// DistanceAndTime implements Provider.
func (c *CachedProvider) DistanceAndTime(ctx context.Context, origin, destination Location) (Route, error) {
	key := cacheKey(origin, destination)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var r Route
		if jerr := json.Unmarshal(raw, &r); jerr == nil {
			return r, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt route cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "route cache read failed", "key", key, "error", err)
	}

	r, err := c.next.DistanceAndTime(ctx, origin, destination)
	if err != nil {
		return Route{}, err
	}

	if b, jerr := json.Marshal(r); jerr == nil {
		if serr := c.rdb.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			c.logger.WarnContext(ctx, "route cache write failed", "key", key, "error", serr)
		}
	}
	return r, nil
}

func cacheKey(a, b Location) string {
	ka, kb := a.Key(), b.Key()
	if kb < ka {
		ka, kb = kb, ka
	}
	return "geo:route:" + ka + "|" + kb
}
