package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/idgate/internal/cache"
	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/metrics"
	"github.com/go-authgate/idgate/internal/rememberme"
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) metrics.Recorder {
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}
	return prometheusMetrics
}

// initializeCaches creates the remember-me token cache and, when GROUP_CACHE_TTL
// is set, the group lookup cache. Both share the configured backend.
func initializeCaches(
	ctx context.Context,
	cfg *config.Config,
) (cache.Cache[rememberme.Entry], cache.Cache[[]string], error) {
	switch cfg.CacheType {
	case config.CacheTypeRedis:
		ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
		defer cancel()

		tokens, err := cache.NewRueidisCache[rememberme.Entry](ctx, redisOptions(cfg, "idgate:rememberme:"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}

		var groups cache.Cache[[]string]
		if cfg.GroupCacheTTL > 0 {
			groups, err = cache.NewRueidisCache[[]string](ctx, redisOptions(cfg, "idgate:groups:"))
			if err != nil {
				_ = tokens.Close()
				return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
			}
		}

		log.Printf("Cache: redis (addr=%s, db=%d, group_ttl=%s)", cfg.RedisAddr, cfg.RedisDB, cfg.GroupCacheTTL)
		return tokens, groups, nil

	default:
		var groups cache.Cache[[]string]
		if cfg.GroupCacheTTL > 0 {
			groups = cache.NewMemoryCache[[]string]()
		}
		log.Printf("Cache: memory (single instance only, group_ttl=%s)", cfg.GroupCacheTTL)
		return cache.NewMemoryCache[rememberme.Entry](), groups, nil
	}
}

func redisOptions(cfg *config.Config, prefix string) cache.RedisOptions {
	return cache.RedisOptions{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: prefix,
	}
}

func rememberMeTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.RememberMeMaxAge) * time.Second
}
