package authn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-authgate/idgate/internal/access"
	"github.com/go-authgate/idgate/internal/credential"
	"github.com/go-authgate/idgate/internal/identitystore"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenValidator struct{}

func (brokenValidator) Validate(context.Context, credential.Credential) (*identitystore.Result, error) {
	return nil, errors.New("directory unreachable")
}

func TestSecurityContext_Authenticate(t *testing.T) {
	sc := NewSecurityContext(&BasicMechanism{}, newHandler(t))
	r := newRouter(sc)
	r.POST("/api/login", func(c *gin.Context) {
		status, err := sc.Authenticate(c, WithParams().
			WithCredential(credential.UsernamePassword{Name: c.Query("u"), Password: c.Query("p")}).
			WithNewAuthentication(true))
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if !c.IsAborted() {
			c.String(http.StatusOK, status.String())
		}
	})

	cl := newClient(r)
	w := cl.do(mustRequest(http.MethodPost, "/api/login?u=alice&p=s3cret"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUCCESS", w.Body.String())

	w = cl.get("/app/page")
	assert.Equal(t, http.StatusOK, w.Code)

	// a new failed authentication discards the established caller
	w = cl.do(mustRequest(http.MethodPost, "/api/login?u=alice&p=wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = cl.get("/app/page")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSecurityContext_NewAuthenticationDiscardsDialog(t *testing.T) {
	sc := NewSecurityContext(NewFormMechanism(LoginToContinue{UseForwardToLogin: false}), newHandler(t))
	r := newRouter(sc)
	r.POST("/reset", func(c *gin.Context) {
		_, err := sc.Authenticate(c, WithParams().WithNewAuthentication(true))
		assert.NoError(t, err)
	})

	cl := newClient(r)
	w := cl.get("/app/page")
	require.Equal(t, "/login", w.Header().Get("Location"))

	w = cl.do(mustRequest(http.MethodPost, "/reset"))
	assert.Equal(t, http.StatusFound, w.Code)

	// the saved page from the first request is gone
	w = cl.postForm(DefaultPostPath, loginForm("alice", "s3cret"))
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestSecurityContext_Roles(t *testing.T) {
	enforcer, err := access.New([]access.Policy{
		{Subject: "admins", Resource: "/admin/*", Method: "*"},
		{Subject: "bob", Resource: "/reports/*", Method: http.MethodGet},
	})
	require.NoError(t, err)
	sc := NewSecurityContext(&BasicMechanism{}, newHandler(t), WithAccess(enforcer))

	newCtx := func(caller string, groups ...string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if caller != "" {
			c.Set(ContextCaller, caller)
			c.Set(ContextGroups, groups)
		}
		return c
	}

	alice := newCtx("alice", "admins")
	name, ok := sc.CallerPrincipal(alice)
	assert.True(t, ok)
	assert.Equal(t, "alice", name)
	assert.True(t, sc.IsCallerInRole(alice, "admins"))
	assert.False(t, sc.IsCallerInRole(alice, "auditors"))

	tests := []struct {
		name     string
		c        *gin.Context
		resource string
		methods  []string
		want     bool
	}{
		{"group member any method", alice, "/admin/users", nil, true},
		{"caller policy listed method", newCtx("bob"), "/reports/q1", []string{http.MethodGet}, true},
		{"caller policy one of methods", newCtx("bob"), "/reports/q1", []string{http.MethodPost, http.MethodGet}, true},
		{"caller policy all methods required", newCtx("bob"), "/reports/q1", nil, true},
		{"caller without policy", newCtx("bob"), "/admin/users", []string{http.MethodGet}, false},
		{"anonymous on protected", newCtx(""), "/admin/users", []string{http.MethodGet}, false},
		{"anonymous on open resource", newCtx(""), "/public", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sc.HasAccessToWebResource(tt.c, tt.resource, tt.methods...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecurityContext_NoEnforcerAllowsAll(t *testing.T) {
	sc := NewSecurityContext(&BasicMechanism{}, newHandler(t))
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	ok, err := sc.HasAccessToWebResource(c, "/anything")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{}, sc.CallerGroups(c))
}

func TestRequireAuthentication_Fault(t *testing.T) {
	sc := NewSecurityContext(&BasicMechanism{}, brokenValidator{})
	cl := newClient(newRouter(sc))

	w := cl.get("/app/page", "Authorization", basicHeader("alice", "s3cret"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("WWW-Authenticate"))
}

func TestRequireAuthentication_NoMechanism(t *testing.T) {
	sc := NewSecurityContext(nil, newHandler(t))
	cl := newClient(newRouter(sc))

	w := cl.get("/public")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSecurityContext_CorruptSessionGroupsHoldNoCaller(t *testing.T) {
	sc := NewSecurityContext(&BasicMechanism{}, newHandler(t))
	r := newRouter(sc)
	r.POST("/plant", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set(sessionCaller, "alice")
		s.Set(sessionGroups, `["admins"`)
		require.NoError(t, s.Save())
		c.Status(http.StatusNoContent)
	})

	cl := newClient(r)
	cl.do(mustRequest(http.MethodPost, "/plant"))

	w := cl.get("/public")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"caller":""`)

	w = cl.get("/app/page")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// a fresh login replaces the broken entry
	w = cl.get("/app/page", "Authorization", basicHeader("alice", "s3cret"))
	assert.Equal(t, http.StatusOK, w.Code)
	w = cl.get("/app/page")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"groups":["admins"]`)
}
