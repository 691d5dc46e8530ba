package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/pricingkit/pkg/logger"
	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

// RedisConfig configures the catalog lookup cache.
type RedisConfig struct {
	ConnectionURL  string        `env:"REDIS_URL"` // Empty disables the cache. Format: "redis://:password@localhost:6379/0"
	TTL            time.Duration `env:"REDIS_CACHE_TTL" envDefault:"5m"`
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"catalog:"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// ConnectRedis connects to Redis, retrying until the server answers a ping.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisURL, err)
	}

	var lastErr error
	for range max(cfg.RetryAttempts, 1) {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrRedisNotReady, lastErr)
}

// RedisHealthcheck returns a check for the cache connection.
func RedisHealthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrUpstream, err)
		}
		return nil
	}
}

// CacheClient is the part of a Redis client the cache uses.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CacheOption configures a Cached resolver.
type CacheOption func(*Cached)

// WithCacheTTL sets how long lookups stay cached. Defaults to five minutes.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cached) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the prefix of every cache key.
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *Cached) { c.prefix = prefix }
}

// WithCacheLogger sets the logger for cache failures.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *Cached) {
		if l != nil {
			c.log = l
		}
	}
}

// Cached wraps a resolver with a Redis read-through cache. Successful
// lookups are stored as JSON; errors, not-found included, are never cached.
// When Redis fails the lookup goes straight to the wrapped resolver.
type Cached struct {
	next   pricing.Resolver
	client CacheClient
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

var _ pricing.Resolver = (*Cached)(nil)

// NewCached returns a caching resolver.
// Panics if next or client is nil.
func NewCached(next pricing.Resolver, client CacheClient, opts ...CacheOption) *Cached {
	if next == nil {
		panic("catalog: resolver is required")
	}
	if client == nil {
		panic("catalog: redis client is required")
	}

	c := &Cached{
		next:   next,
		client: client,
		ttl:    5 * time.Minute,
		prefix: "catalog:",
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPlan returns the cached plan or fetches and caches it.
func (c *Cached) GetPlan(ctx context.Context, code string) (pricing.Plan, error) {
	return cached(ctx, c, "plan:"+url.PathEscape(code), func() (pricing.Plan, error) {
		return c.next.GetPlan(ctx, code)
	})
}

// GetCoupon returns the cached coupon or fetches and caches it.
func (c *Cached) GetCoupon(ctx context.Context, planCode, code string) (pricing.Coupon, error) {
	return cached(ctx, c, "coupon:"+url.PathEscape(planCode)+":"+url.PathEscape(code), func() (pricing.Coupon, error) {
		return c.next.GetCoupon(ctx, planCode, code)
	})
}

// GetTaxRates returns the cached rates or fetches and caches them.
func (c *Cached) GetTaxRates(ctx context.Context, addr pricing.Address) ([]pricing.TaxEntry, error) {
	return cached(ctx, c, "tax:"+addressKey(addr), func() ([]pricing.TaxEntry, error) {
		return c.next.GetTaxRates(ctx, addr)
	})
}

func cached[T any](ctx context.Context, c *Cached, key string, fetch func() (T, error)) (T, error) {
	key = c.prefix + key

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.log.WarnContext(ctx, "discarding malformed cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.WarnContext(ctx, "cache read failed", slog.String("key", key), logger.Error(err))
	}

	v, err := fetch()
	if err != nil {
		return v, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "cache write failed", slog.String("key", key), logger.Error(err))
	}
	return v, nil
}

// addressKey renders the address fields in key order.
func addressKey(addr pricing.Address) string {
	keys := make([]string, 0, len(addr))
	for k := range addr {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(addr[k]))
	}
	return strings.Join(parts, "&")
}
