package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimitStoreType defines the type of rate limit store
type RateLimitStoreType string

const (
	// RateLimitStoreMemory uses in-memory storage (single instance only)
	RateLimitStoreMemory RateLimitStoreType = "memory"
	// RateLimitStoreRedis uses Redis storage shared by every instance
	RateLimitStoreRedis RateLimitStoreType = "redis"
)

// RateLimitConfig configures a per-client-IP request limit.
type RateLimitConfig struct {
	RequestsPerMinute int
	StoreType         RateLimitStoreType

	// Redis is required when StoreType is RateLimitStoreRedis.
	Redis  *redis.Client
	Prefix string

	CleanupInterval time.Duration
}

// NewRateLimiter creates a gin middleware that rejects clients over the limit with 429.
func NewRateLimiter(cfg RateLimitConfig) (gin.HandlerFunc, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", cfg.RequestsPerMinute)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ratelimit"
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	var store limiter.Store
	switch cfg.StoreType {
	case RateLimitStoreRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis rate limit store needs a client")
		}
		var err error
		store, err = limiterRedis.NewStoreWithOptions(cfg.Redis, limiter.StoreOptions{
			Prefix:          cfg.Prefix,
			CleanUpInterval: cfg.CleanupInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
	default:
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          cfg.Prefix,
			CleanUpInterval: cfg.CleanupInterval,
		})
	}

	instance := limiter.New(store, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(cfg.RequestsPerMinute),
	})

	return mgin.NewMiddleware(instance, mgin.WithLimitReachedHandler(limitReached)), nil
}

// limitReached answers browsers with plain text and API clients with JSON
func limitReached(c *gin.Context) {
	if strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.String(http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
	} else {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate_limit_exceeded",
			"error_description": "Too many requests. Please try again later.",
		})
	}
	c.Abort()
}

// NewRedisClient connects and pings a go-redis client for the rate limit store.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}
