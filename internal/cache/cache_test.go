package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type entry struct {
	Caller string   `json:"caller"`
	Groups []string `json:"groups"`
}

// clock is a manually advanced time source for expiry tests.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemoryCache[T any]() (*MemoryCache[T], *clock) {
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache[T]()
	c.now = clk.Now
	return c, clk
}

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache[entry]()

	want := entry{Caller: "alice", Groups: []string{"admins"}}
	require.NoError(t, c.Set(ctx, "k", want, time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMemoryCache_GetMiss(t *testing.T) {
	c, _ := newTestMemoryCache[string]()

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestMemoryCache[string]()

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))

	clk.Advance(999 * time.Millisecond)
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	clk.Advance(time.Millisecond)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_InvalidTTL(t *testing.T) {
	c, _ := newTestMemoryCache[string]()

	assert.ErrorIs(t, c.Set(context.Background(), "k", "v", 0), ErrInvalidTTL)
	assert.ErrorIs(t, c.Set(context.Background(), "k", "v", -time.Second), ErrInvalidTTL)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_SweepRemovesExpired(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestMemoryCache[int]()

	for i := 0; i < sweepEvery-1; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("old-%d", i), i, time.Second))
	}
	assert.Equal(t, sweepEvery-1, c.Len())

	clk.Advance(2 * time.Second)
	require.NoError(t, c.Set(ctx, "fresh", 1, time.Minute))

	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache[string]()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Delete(ctx, "never-set"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_CloseAndHealth(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache[string]()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Health(ctx))
	require.NoError(t, c.Close())

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = c.Set(ctx, key, i, time.Minute)
			_, _ = c.Get(ctx, key)
			if i%7 == 0 {
				_ = c.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()
}

func TestGetWithFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		c, _ := newTestMemoryCache[[]string]()
		var calls atomic.Int32
		fetch := func(ctx context.Context, key string) ([]string, error) {
			calls.Add(1)
			return []string{"admins", key}, nil
		}

		v, err := GetWithFetch[[]string](ctx, c, "alice", time.Minute, fetch)
		require.NoError(t, err)
		assert.Equal(t, []string{"admins", "alice"}, v)

		v, err = GetWithFetch[[]string](ctx, c, "alice", time.Minute, fetch)
		require.NoError(t, err)
		assert.Equal(t, []string{"admins", "alice"}, v)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("fetch error is not cached", func(t *testing.T) {
		c, _ := newTestMemoryCache[string]()
		boom := errors.New("boom")

		_, err := GetWithFetch[string](ctx, c, "k", time.Minute, func(context.Context, string) (string, error) {
			return "", boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, c.Len())
	})
}

func TestRueidisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping Redis test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Skipping Redis test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	c, err := NewRueidisCache[entry](ctx, RedisOptions{Addr: addr, KeyPrefix: "idgate-test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Health(ctx))

	_, err = c.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrCacheMiss)

	want := entry{Caller: "alice", Groups: []string{"admins"}}
	require.NoError(t, c.Set(ctx, "alice", want, time.Minute))

	got, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, c.Delete(ctx, "alice"))
	_, err = c.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.ErrorIs(t, c.Set(ctx, "alice", want, 0), ErrInvalidTTL)
}
