package bootstrap

import (
	"log"
	"net/http"

	"github.com/go-authgate/idgate/internal/authn"
	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/metrics"
	"github.com/go-authgate/idgate/internal/middleware"
	"github.com/go-authgate/idgate/internal/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db *store.Store,
	sc *authn.SecurityContext,
	prometheusMetrics metrics.Recorder,
	loginRateLimiter gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(prometheusMetrics))
	r.Use(gin.Logger(), gin.Recovery())

	setupSessionMiddleware(r, cfg)

	r.GET("/health", createHealthCheckHandler(db))
	setupMetricsEndpoint(r, cfg)
	setupAllRoutes(r, cfg, sc, loginRateLimiter)

	log.Printf("[Server] idgate starting on %s", cfg.ServerAddr)
	return r
}

// setupSessionMiddleware configures session handling middleware
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.SessionSecure,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cfg.SessionName, sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	sc *authn.SecurityContext,
	loginRateLimiter gin.HandlerFunc,
) {
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/me")
	})

	// Login routes
	r.GET(cfg.LoginPage, loginPage(cfg))
	r.GET(cfg.ErrorPage, loginErrorPage(cfg))
	loginChain := []gin.HandlerFunc{authn.RequireAuthentication(sc, false), loginDone}
	if loginRateLimiter != nil {
		loginChain = append([]gin.HandlerFunc{loginRateLimiter}, loginChain...)
	}
	r.POST(authn.DefaultPostPath, loginChain...)
	r.GET("/logout", logoutHandler(sc, cfg))
	r.POST("/logout", logoutHandler(sc, cfg))

	// Protected routes
	protected := r.Group("")
	protected.Use(authn.RequireAuthentication(sc, true), requireAccess(sc))
	{
		protected.GET("/me", meHandler(sc))
	}
}
