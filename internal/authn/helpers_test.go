package authn

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-authgate/idgate/internal/identitystore"
	"github.com/go-authgate/idgate/internal/passwordhash"
	"github.com/go-authgate/idgate/internal/stores"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newHandler returns a handler over a memory store holding alice/s3cret in
// admins and bob/hunter2 in users.
func newHandler(t *testing.T) *identitystore.Handler {
	t.Helper()
	hash := passwordhash.NewPbkdf2()
	require.NoError(t, hash.Initialize(map[string]string{passwordhash.ParamIterations: "1024"}))

	mem := stores.NewMemoryStore(identitystore.Settings{ID: "memory"}, hash)
	require.NoError(t, mem.Add("alice", "s3cret", "admins"))
	require.NoError(t, mem.Add("bob", "hunter2", "users"))
	return identitystore.NewHandler([]identitystore.Store{mem})
}

// newRouter installs cookie sessions and protects /app/* with sc.
func newRouter(sc *SecurityContext) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))

	whoami := func(c *gin.Context) {
		name, _ := sc.CallerPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"caller": name, "groups": sc.CallerGroups(c)})
	}

	r.GET("/public", RequireAuthentication(sc, false), whoami)

	app := r.Group("/app", RequireAuthentication(sc, true))
	app.GET("/page", whoami)
	app.POST("/page", whoami)

	r.POST(DefaultPostPath, RequireAuthentication(sc, false), func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/")
	})
	r.POST("/logout", func(c *gin.Context) {
		if err := sc.Logout(c); err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

// client replays the cookies set by earlier responses.
type client struct {
	r       http.Handler
	cookies map[string]*http.Cookie
}

func newClient(r http.Handler) *client {
	return &client{r: r, cookies: map[string]*http.Cookie{}}
}

func (cl *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range cl.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	cl.r.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(cl.cookies, ck.Name)
			continue
		}
		cl.cookies[ck.Name] = ck
	}
	return w
}

func (cl *client) get(path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return cl.do(req)
}

func (cl *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return cl.do(req)
}
