package bootstrap

import (
	"context"
	"net/http"

	"github.com/go-authgate/idgate/internal/authn"
	"github.com/go-authgate/idgate/internal/cache"
	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/identitystore"
	"github.com/go-authgate/idgate/internal/metrics"
	"github.com/go-authgate/idgate/internal/rememberme"
	"github.com/go-authgate/idgate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB              *store.Store
	MetricsRecorder metrics.Recorder
	TokenCache      cache.Cache[rememberme.Entry]
	GroupCache      cache.Cache[[]string]

	// Login throttling; the client is nil unless the redis store is used
	LoginRateLimiter     gin.HandlerFunc
	RateLimitRedisClient *redis.Client

	// Authentication
	Handler         *identitystore.Handler
	Tokens          *rememberme.Store
	SecurityContext *authn.SecurityContext

	// HTTP
	Router *gin.Engine
	Server *http.Server
}

// Run initializes and starts the application
func Run(ctx context.Context, cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	validateAllConfiguration(cfg)

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		return err
	}

	// Phase 3: Initialize identity stores and the authentication mechanism
	if err := app.initializeAuthentication(); err != nil {
		return err
	}

	// Phase 4: Initialize HTTP layer
	app.initializeHTTPLayer()

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up database, metrics, and caches
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	app.MetricsRecorder = initializeMetrics(app.Config)

	if app.Config.HasStore(config.StoreDatabase) {
		app.DB, err = initializeDatabase(app.Config)
		if err != nil {
			return err
		}
	}

	app.TokenCache, app.GroupCache, err = initializeCaches(ctx, app.Config)
	if err != nil {
		return err
	}

	app.LoginRateLimiter, app.RateLimitRedisClient, err = initializeLoginRateLimiter(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeAuthentication builds the store handler, the token store and the security context
func (app *Application) initializeAuthentication() error {
	var err error

	app.Handler, err = NewIdentityHandler(app.Config, app.DB, app.GroupCache, app.MetricsRecorder)
	if err != nil {
		return err
	}

	if app.Config.RememberMeEnabled {
		app.Tokens = rememberme.New(app.TokenCache, rememberMeTTL(app.Config), app.MetricsRecorder)
	}

	app.SecurityContext, err = newSecurityContext(app.Config, app.Handler, app.Tokens, app.MetricsRecorder)
	return err
}

// initializeHTTPLayer sets up router and server
func (app *Application) initializeHTTPLayer() {
	app.Router = setupRouter(
		app.Config,
		app.DB,
		app.SecurityContext,
		app.MetricsRecorder,
		app.LoginRateLimiter,
	)
	app.Server = createHTTPServer(app.Config, app.Router)
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Config, app.Server)
	addCacheShutdownJob(m, "token", app.TokenCache)
	addCacheShutdownJob(m, "group", app.GroupCache)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addDatabaseShutdownJob(m, app.DB)

	<-m.Done()
}
