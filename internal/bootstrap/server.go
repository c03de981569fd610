package bootstrap

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/store"
	"github.com/go-authgate/idgate/internal/version"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		log.Printf("[Server] %s listening on %s", version.String(), srv.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, cfg *config.Config, srv *http.Server) {
	m.AddShutdownJob(func() error {
		log.Println("[Server] Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("[Server] Server forced to shutdown: %v", err)
			return err
		}

		log.Println("[Server] Server exited")
		return nil
	})
}

type closer interface {
	Close() error
}

// addCacheShutdownJob closes a cache on shutdown
func addCacheShutdownJob(m *graceful.Manager, name string, c closer) {
	if c == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := c.Close(); err != nil {
			log.Printf("[Server] Error closing %s cache: %v", name, err)
			return err
		}
		log.Printf("[Server] %s cache closed", name)
		return nil
	})
}

// addDatabaseShutdownJob closes the database on shutdown
func addDatabaseShutdownJob(m *graceful.Manager, db *store.Store) {
	if db == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := db.Close(); err != nil {
			log.Printf("[Server] Error closing database: %v", err)
			return err
		}
		log.Println("[Server] Database connection closed")
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		log.Println("[Server] Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			log.Printf("[Server] Error closing Redis client: %v", err)
			return err
		}
		log.Println("[Server] Redis connection closed")
		return nil
	})
}
