package authn

import (
	"context"
	"log"
	"net/http"

	"github.com/go-authgate/idgate/internal/credential"
	"github.com/go-authgate/idgate/internal/identitystore"

	"github.com/gin-gonic/gin"
)

// TokenStore issues and checks remember-me login tokens; *rememberme.Store implements it.
type TokenStore interface {
	Validator
	GenerateLoginToken(ctx context.Context, caller string, groups []string) (string, error)
	RemoveLoginToken(ctx context.Context, token string) error
}

// CookieConfig describes the remember-me cookie.
type CookieConfig struct {
	Name     string
	MaxAge   int // seconds
	Path     string
	Secure   bool
	HTTPOnly bool
}

// DefaultCookieConfig is JREMEMBERMEID for one day, secure and HTTP-only.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     "JREMEMBERMEID",
		MaxAge:   86400,
		Path:     "/",
		Secure:   true,
		HTTPOnly: true,
	}
}

// DefaultRememberMeField is the form field that opts a login into remember-me.
const DefaultRememberMeField = "j_remember_me"

// RememberMeMechanism wraps another mechanism. A valid remember-me cookie
// authenticates without consulting the wrapped mechanism, and a successful
// wrapped login can issue a new cookie.
type RememberMeMechanism struct {
	Inner  Mechanism
	Tokens TokenStore
	Cookie CookieConfig

	// Always issues a token on every successful login. Otherwise a token is
	// issued when Parameters.RememberMe is set or Field is posted as true.
	Always bool
	Field  string
}

func NewRememberMeMechanism(inner Mechanism, tokens TokenStore, cookie CookieConfig) *RememberMeMechanism {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieConfig().Name
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &RememberMeMechanism{
		Inner:  inner,
		Tokens: tokens,
		Cookie: cookie,
		Field:  DefaultRememberMeField,
	}
}

func (m *RememberMeMechanism) Name() string {
	return m.Inner.Name() + "+remember_me"
}

// CarriesCredential defers to the wrapped mechanism. The remember-me cookie
// alone never replaces a session caller.
func (m *RememberMeMechanism) CarriesCredential(c *gin.Context) bool {
	return carriesCredential(m.Inner, c)
}

func (m *RememberMeMechanism) ValidateRequest(c *gin.Context, msg *Message) (Status, error) {
	ctx := c.Request.Context()

	// a credential on the request outranks the cookie
	if msg.Params.Credential == nil && !m.CarriesCredential(c) {
		if token, err := c.Cookie(m.Cookie.Name); err == nil && token != "" {
			result, err := m.Tokens.Validate(ctx, credential.RememberMe{Token: token})
			if err != nil {
				return NotDone, err
			}
			if result.Status() == identitystore.Valid {
				return msg.NotifyLogin(result), nil
			}
			m.clearCookie(c)
		}
	}

	status, err := m.Inner.ValidateRequest(c, msg)
	if err != nil || status != Success || !m.wanted(c, msg) {
		return status, err
	}

	result := msg.Result()
	token, err := m.Tokens.GenerateLoginToken(ctx, result.CallerName(), result.Groups())
	if err != nil {
		// the login itself succeeded
		log.Printf("[Authn] Failed to issue remember-me token caller=%s: %v", result.CallerName(), err)
		return status, nil
	}
	m.setCookie(c, token, m.Cookie.MaxAge)
	return status, nil
}

// CleanSubject revokes the caller's token and clears the cookie.
func (m *RememberMeMechanism) CleanSubject(c *gin.Context, msg *Message) error {
	if token, err := c.Cookie(m.Cookie.Name); err == nil && token != "" {
		if err := m.Tokens.RemoveLoginToken(c.Request.Context(), token); err != nil {
			return err
		}
		m.clearCookie(c)
	}
	if cl, ok := m.Inner.(Cleaner); ok {
		return cl.CleanSubject(c, msg)
	}
	return nil
}

func (m *RememberMeMechanism) wanted(c *gin.Context, msg *Message) bool {
	if m.Always || msg.Params.RememberMe {
		return true
	}
	if m.Field == "" || c.Request.Method != http.MethodPost {
		return false
	}
	switch c.PostForm(m.Field) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func (m *RememberMeMechanism) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetCookie(m.Cookie.Name, value, maxAge, m.Cookie.Path, "", m.Cookie.Secure, m.Cookie.HTTPOnly)
}

func (m *RememberMeMechanism) clearCookie(c *gin.Context) {
	m.setCookie(c, "", -1)
}
