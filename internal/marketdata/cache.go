package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// ErrCacheMiss is returned by Cache.Get when no entry exists for a key.
var ErrCacheMiss = errors.New("cache miss")

// DefaultCacheTTL is how long fetched bars stay cached.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores fetched bar series by key.
type Cache interface {
	Get(ctx context.Context, key string) (domain.PriceSeries, error)
	Set(ctx context.Context, key string, bars domain.PriceSeries) error
}

// CacheKey returns the key for bars of symbol at tf starting at start:
// market_data:{SYMBOL}:{timeframe}:{startUnix}.
func CacheKey(symbol string, tf Timeframe, start time.Time) string {
	return fmt.Sprintf("market_data:%s:%s:%d", strings.ToUpper(symbol), tf, start.Unix())
}

// Compile-time interface check.
var _ Cache = (*RedisCache)(nil)

// RedisCache is a Cache backed by redis with JSON-encoded values. A cache
// that cannot reach redis still constructs; its operations return errors
// that the Fetcher treats as misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// RedisOptions configures NewRedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache connects to redis and verifies connectivity. A failed ping
// is logged and the cache is returned anyway.
func NewRedisCache(opts RedisOptions, log *slog.Logger) *RedisCache {
	if log == nil {
		log = slog.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	c := &RedisCache{
		client: client,
		ttl:    opts.TTL,
		log:    log.With("component", "cache"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		c.log.Warn("redis unavailable, continuing without cache", "addr", opts.Addr, "error", err)
	} else {
		c.log.Info("redis connected", "addr", opts.Addr, "ttl", c.ttl)
	}
	return c
}

// Ping checks the redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached series for key, or ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) (domain.PriceSeries, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var bars domain.PriceSeries
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, fmt.Errorf("decoding cached bars %s: %w", key, err)
	}
	return bars, nil
}

// Set stores bars under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, bars domain.PriceSeries) error {
	data, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("encoding bars for %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
