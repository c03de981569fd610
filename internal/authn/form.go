package authn

import (
	"net/http"

	"github.com/go-authgate/idgate/internal/credential"
	"github.com/go-authgate/idgate/internal/identitystore"
	"github.com/go-authgate/idgate/internal/util"

	"github.com/gin-gonic/gin"
)

// Form field names and the post path of the classic form login.
const (
	DefaultUsernameField = "j_username"
	DefaultPasswordField = "j_password"
	DefaultPostPath      = "/j_security_check"
)

// LoginToContinue describes where an unauthenticated caller is sent.
type LoginToContinue struct {
	LoginPage string
	ErrorPage string
	// UseForwardToLogin renders LoginHandler in place of the protected
	// resource instead of redirecting to LoginPage.
	UseForwardToLogin bool
	LoginHandler      gin.HandlerFunc
}

// DefaultLoginToContinue returns the defaults: "/login", "/login-error", forward.
func DefaultLoginToContinue() LoginToContinue {
	return LoginToContinue{
		LoginPage:         "/login",
		ErrorPage:         "/login-error",
		UseForwardToLogin: true,
	}
}

// FormMechanism authenticates with a login form posted to PostPath and
// brings the caller back to the page that required the login.
type FormMechanism struct {
	LoginToContinue LoginToContinue

	PostPath      string
	UsernameField string
	PasswordField string
}

// NewFormMechanism applies the default field names and post path.
func NewFormMechanism(ltc LoginToContinue) *FormMechanism {
	def := DefaultLoginToContinue()
	if ltc.LoginPage == "" {
		ltc.LoginPage = def.LoginPage
	}
	if ltc.ErrorPage == "" {
		ltc.ErrorPage = def.ErrorPage
	}
	return &FormMechanism{
		LoginToContinue: ltc,
		PostPath:        DefaultPostPath,
		UsernameField:   DefaultUsernameField,
		PasswordField:   DefaultPasswordField,
	}
}

func (m *FormMechanism) Name() string { return "form" }

// CarriesCredential reports whether the request is a post of the login form.
func (m *FormMechanism) CarriesCredential(c *gin.Context) bool {
	return m.isLoginPost(c)
}

func (m *FormMechanism) isLoginPost(c *gin.Context) bool {
	return c.Request.Method == http.MethodPost && c.Request.URL.Path == m.PostPath
}

func (m *FormMechanism) ValidateRequest(c *gin.Context, msg *Message) (Status, error) {
	// a credential from the application skips the dialog entirely
	if msg.Params.Credential != nil {
		result, err := msg.Validate(msg.Params.Credential)
		if err != nil {
			return NotDone, err
		}
		return msg.NotifyLogin(result), nil
	}

	if m.isLoginPost(c) {
		return m.login(c, msg)
	}

	if msg.Protected || msg.AuthenticationRequest {
		return m.loginToContinue(c, msg)
	}
	return msg.DoNothing(), nil
}

// login validates the posted form. On success the caller is sent back to the
// saved page when there is one.
func (m *FormMechanism) login(c *gin.Context, msg *Message) (Status, error) {
	cred := credential.UsernamePassword{
		Name:     c.PostForm(m.UsernameField),
		Password: c.PostForm(m.PasswordField),
	}

	result, err := msg.Validate(cred)
	if err != nil {
		return NotDone, err
	}
	if result.Status() != identitystore.Valid {
		msg.Redirect(m.LoginToContinue.ErrorPage)
		return SendFailure, nil
	}

	dialog := DialogFor(c)
	if target := dialog.OriginalURL(); util.IsLocalRedirect(target) {
		dialog.ClearOriginalURL()
		msg.RedirectAfterLogin(target)
	}
	return msg.NotifyLogin(result), nil
}

func (m *FormMechanism) loginToContinue(c *gin.Context, msg *Message) (Status, error) {
	if c.Request.Method == http.MethodGet {
		dialog := DialogFor(c)
		dialog.SetOriginalURL(c.Request.URL.RequestURI())
		if err := dialog.Save(); err != nil {
			return NotDone, err
		}
	}

	ltc := m.LoginToContinue
	if ltc.UseForwardToLogin && ltc.LoginHandler != nil {
		ltc.LoginHandler(c)
		c.Abort()
		return SendContinue, nil
	}
	return msg.Redirect(ltc.LoginPage), nil
}
