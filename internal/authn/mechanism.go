package authn

import (
	"context"
	"net/http"

	"github.com/go-authgate/idgate/internal/credential"
	"github.com/go-authgate/idgate/internal/identitystore"

	"github.com/gin-gonic/gin"
)

// Validator checks credentials; *identitystore.Handler implements it.
type Validator interface {
	Validate(ctx context.Context, cred credential.Credential) (*identitystore.Result, error)
}

// Mechanism authenticates callers from HTTP requests.
//
// ValidateRequest reports exactly one Status. When it returns SendContinue or
// SendFailure it has written the response and aborted c. A non-nil error is a
// system fault and is never reported as SendFailure.
type Mechanism interface {
	Name() string
	ValidateRequest(c *gin.Context, msg *Message) (Status, error)
}

// Cleaner is implemented by mechanisms that hold state beyond the session,
// such as remember-me tokens, and must drop it on logout.
type Cleaner interface {
	CleanSubject(c *gin.Context, msg *Message) error
}

// CredentialCarrier is implemented by mechanisms that can tell a request
// bringing its own credential, such as a login form post or an Authorization
// header, from one that relies on the session.
type CredentialCarrier interface {
	CarriesCredential(c *gin.Context) bool
}

func carriesCredential(m Mechanism, c *gin.Context) bool {
	cc, ok := m.(CredentialCarrier)
	return ok && cc.CarriesCredential(c)
}

// Message carries one authentication attempt through a mechanism.
type Message struct {
	Params Parameters

	// Protected is set when the requested resource requires a caller.
	Protected bool
	// AuthenticationRequest is set when the application triggered
	// authentication explicitly rather than on resource access.
	AuthenticationRequest bool

	Handler Validator

	c             *gin.Context
	result        *identitystore.Result
	afterLoginURL string
}

// NewMessage binds a message to a request.
func NewMessage(c *gin.Context, h Validator, params Parameters) *Message {
	return &Message{Params: params, Handler: h, c: c}
}

// Validate runs cred through the Handler.
func (m *Message) Validate(cred credential.Credential) (*identitystore.Result, error) {
	if m.Handler == nil {
		return nil, ErrNoValidator
	}
	return m.Handler.Validate(m.c.Request.Context(), cred)
}

// DoNothing reports NotDone.
func (m *Message) DoNothing() Status {
	return NotDone
}

// NotifyLogin records a VALID result as the authenticated caller and reports
// Success. Any other result reports SendFailure without writing a response.
func (m *Message) NotifyLogin(result *identitystore.Result) Status {
	if result == nil || result.Status() != identitystore.Valid {
		return SendFailure
	}
	m.result = result
	return Success
}

// Result is the result passed to a successful NotifyLogin.
func (m *Message) Result() *identitystore.Result {
	return m.result
}

// ResponseUnauthorized writes a 401 and reports SendFailure.
func (m *Message) ResponseUnauthorized() Status {
	m.c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":             "unauthorized",
		"error_description": "Authentication required",
	})
	return SendFailure
}

// Redirect writes a 302 to location and reports SendContinue.
func (m *Message) Redirect(location string) Status {
	m.c.Redirect(http.StatusFound, location)
	m.c.Abort()
	return SendContinue
}

// RedirectAfterLogin asks for a redirect to location once a Success has been
// recorded in the session. Session cookies must be written before the redirect.
func (m *Message) RedirectAfterLogin(location string) {
	m.afterLoginURL = location
}
