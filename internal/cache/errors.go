package cache

import "errors"

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheUnavailable indicates the cache backend is unavailable
	ErrCacheUnavailable = errors.New("cache: backend unavailable")

	// ErrInvalidValue indicates the cached value cannot be encoded or parsed
	ErrInvalidValue = errors.New("cache: invalid value")

	// ErrInvalidTTL indicates a non-positive TTL was given to Set
	ErrInvalidTTL = errors.New("cache: ttl must be positive")
)
