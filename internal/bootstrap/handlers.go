package bootstrap

import (
	"html/template"
	"log"
	"net/http"

	"github.com/go-authgate/idgate/internal/authn"
	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/store"

	"github.com/gin-gonic/gin"
)

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
{{if .Failed}}<p>Invalid username or password.</p>{{end}}
<form method="POST" action="{{.Action}}">
  <label>Username <input type="text" name="{{.UsernameField}}" autofocus></label>
  <label>Password <input type="password" name="{{.PasswordField}}"></label>
  {{if .RememberMe}}<label><input type="checkbox" name="{{.RememberMeField}}" value="on"> Remember me</label>{{end}}
  <button type="submit">Sign in</button>
</form>
</body>
</html>
`))

type loginView struct {
	Action          string
	UsernameField   string
	PasswordField   string
	RememberMeField string
	RememberMe      bool
	Failed          bool
}

func renderLogin(c *gin.Context, status int, view loginView) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := loginTemplate.Execute(c.Writer, view); err != nil {
		log.Printf("[Server] Failed to render login page: %v", err)
	}
}

func newLoginView(cfg *config.Config, failed bool) loginView {
	return loginView{
		Action:          authn.DefaultPostPath,
		UsernameField:   authn.DefaultUsernameField,
		PasswordField:   authn.DefaultPasswordField,
		RememberMeField: authn.DefaultRememberMeField,
		RememberMe:      cfg.RememberMeEnabled && !cfg.RememberMeAlways,
		Failed:          failed,
	}
}

// loginPage renders the login form
func loginPage(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		renderLogin(c, http.StatusOK, newLoginView(cfg, false))
	}
}

// loginErrorPage renders the login form after a failed attempt
func loginErrorPage(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		renderLogin(c, http.StatusUnauthorized, newLoginView(cfg, true))
	}
}

// loginDone runs after a form post that did not redirect back to a saved page
func loginDone(c *gin.Context) {
	c.Redirect(http.StatusFound, "/me")
}

// logoutHandler clears the caller and any remember-me token
func logoutHandler(sc *authn.SecurityContext, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sc.Logout(c); err != nil {
			log.Printf("[Server] Logout failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Logout could not be completed",
			})
			return
		}
		c.Redirect(http.StatusFound, cfg.LoginPage)
	}
}

// meHandler describes the authenticated caller
func meHandler(sc *authn.SecurityContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, _ := sc.CallerPrincipal(c)
		c.JSON(http.StatusOK, gin.H{
			"caller": name,
			"groups": sc.CallerGroups(c),
		})
	}
}

// requireAccess rejects callers the access policies do not allow
func requireAccess(sc *authn.SecurityContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := sc.HasAccessToWebResource(c, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			log.Printf("[Authn] Access check failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Access check failed",
			})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "access_denied",
				"error_description": "You do not have access to this resource",
			})
			return
		}
		c.Next()
	}
}

// createHealthCheckHandler reports database health when the database store is in use
func createHealthCheckHandler(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
			return
		}
		switch err := db.Health(); err {
		case nil:
			c.JSON(http.StatusOK, gin.H{
				"status":   "healthy",
				"database": "connected",
			})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
			})
		}
	}
}
