package bootstrap

import (
	"context"
	"log"

	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// initializeLoginRateLimiter throttles form posts per client IP. It returns a
// nil handler when LOGIN_RATE_LIMIT is 0, and a go-redis client only for the
// redis store; ulule/limiter needs go-redis types.
func initializeLoginRateLimiter(
	ctx context.Context,
	cfg *config.Config,
) (gin.HandlerFunc, *redis.Client, error) {
	if cfg.LoginRateLimit <= 0 {
		log.Println("Login rate limiting disabled")
		return nil, nil, nil
	}

	rl := middleware.RateLimitConfig{
		RequestsPerMinute: cfg.LoginRateLimit,
		StoreType:         middleware.RateLimitStoreType(cfg.RateLimitStore),
		Prefix:            "idgate:ratelimit:login",
	}

	var client *redis.Client
	if rl.StoreType == middleware.RateLimitStoreRedis {
		ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
		defer cancel()

		var err error
		client, err = middleware.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		rl.Redis = client
	}

	limiter, err := middleware.NewRateLimiter(rl)
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, nil, err
	}

	log.Printf("Login rate limiting: %d/min per client (store: %s)", cfg.LoginRateLimit, cfg.RateLimitStore)
	return limiter, client, nil
}
