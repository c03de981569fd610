package stores

import (
	"context"
	"time"

	"github.com/go-authgate/idgate/internal/cache"
	"github.com/go-authgate/idgate/internal/identitystore"
)

// CachedGroups caches the CallerGroups answers of the wrapped store.
// Validation passes straight through.
type CachedGroups struct {
	identitystore.Store

	cache cache.Cache[[]string]
	ttl   time.Duration
}

func NewCachedGroups(s identitystore.Store, c cache.Cache[[]string], ttl time.Duration) *CachedGroups {
	return &CachedGroups{Store: s, cache: c, ttl: ttl}
}

// CallerGroups requires PermissionGetGroups on every call, cache hits included.
func (c *CachedGroups) CallerGroups(
	ctx context.Context,
	grant identitystore.Grant,
	result *identitystore.Result,
) ([]string, error) {
	if err := grant.Require(identitystore.PermissionGetGroups); err != nil {
		return nil, err
	}

	key := c.Settings().ID + ":" + result.CallerName()
	return cache.GetWithFetch(ctx, c.cache, key, c.ttl, func(ctx context.Context, _ string) ([]string, error) {
		return c.Store.CallerGroups(ctx, grant, result)
	})
}
