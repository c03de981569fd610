package authn

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func loginForm(name, password string) url.Values {
	return url.Values{DefaultUsernameField: {name}, DefaultPasswordField: {password}}
}

func TestFormMechanism_RedirectToLoginAndBack(t *testing.T) {
	form := NewFormMechanism(LoginToContinue{UseForwardToLogin: false})
	sc := NewSecurityContext(form, newHandler(t))
	cl := newClient(newRouter(sc))

	w := cl.get("/app/page?tab=1")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = cl.postForm(DefaultPostPath, loginForm("alice", "s3cret"))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/app/page?tab=1", w.Header().Get("Location"))

	w = cl.get("/app/page?tab=1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"caller":"alice"`)
}

func TestFormMechanism_ForwardToLogin(t *testing.T) {
	form := NewFormMechanism(LoginToContinue{
		UseForwardToLogin: true,
		LoginHandler: func(c *gin.Context) {
			c.String(http.StatusOK, "login page")
		},
	})
	sc := NewSecurityContext(form, newHandler(t))
	cl := newClient(newRouter(sc))

	w := cl.get("/app/page")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "login page", w.Body.String())
}

func TestFormMechanism_InvalidLogin(t *testing.T) {
	sc := NewSecurityContext(NewFormMechanism(LoginToContinue{}), newHandler(t))
	cl := newClient(newRouter(sc))

	w := cl.postForm(DefaultPostPath, loginForm("alice", "wrong"))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login-error", w.Header().Get("Location"))

	w = cl.postForm(DefaultPostPath, loginForm("", ""))
	assert.Equal(t, "/login-error", w.Header().Get("Location"))
}

func TestFormMechanism_LoginWithoutSavedPage(t *testing.T) {
	sc := NewSecurityContext(NewFormMechanism(LoginToContinue{}), newHandler(t))
	cl := newClient(newRouter(sc))

	// the post path handler runs after a Success with nothing saved
	w := cl.postForm(DefaultPostPath, loginForm("alice", "s3cret"))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = cl.get("/public")
	assert.Contains(t, w.Body.String(), `"caller":"alice"`)
}

func TestFormMechanism_PublicResourceIsNotDone(t *testing.T) {
	sc := NewSecurityContext(NewFormMechanism(LoginToContinue{}), newHandler(t))
	cl := newClient(newRouter(sc))

	w := cl.get("/public")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"caller":""`)
}

func TestFormMechanism_LoginPostWhileLoggedIn(t *testing.T) {
	sc := NewSecurityContext(NewFormMechanism(LoginToContinue{UseForwardToLogin: false}), newHandler(t))
	cl := newClient(newRouter(sc))

	w := cl.postForm(DefaultPostPath, loginForm("alice", "s3cret"))
	assert.Equal(t, "/", w.Header().Get("Location"))

	// a wrong password is rejected and ends the existing login
	w = cl.postForm(DefaultPostPath, loginForm("alice", "WRONG"))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login-error", w.Header().Get("Location"))

	w = cl.get("/app/page")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	// posting another caller switches to it
	cl.postForm(DefaultPostPath, loginForm("alice", "s3cret"))
	w = cl.postForm(DefaultPostPath, loginForm("bob", "hunter2"))
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = cl.get("/app/page")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"caller":"bob"`)
	assert.Contains(t, w.Body.String(), `"groups":["users"]`)
}
