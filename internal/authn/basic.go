package authn

import (
	"strconv"

	"github.com/go-authgate/idgate/internal/credential"
	"github.com/go-authgate/idgate/internal/identitystore"

	"github.com/gin-gonic/gin"
)

// BasicMechanism authenticates with the HTTP Basic scheme.
type BasicMechanism struct {
	Realm string
}

func (m *BasicMechanism) Name() string { return "basic" }

// CarriesCredential reports whether the request sends an Authorization header.
func (m *BasicMechanism) CarriesCredential(c *gin.Context) bool {
	return c.GetHeader("Authorization") != ""
}

// ValidateRequest validates the Authorization header, or the explicit
// credential in msg.Params. Without either it challenges only when the
// resource is protected or authentication was requested.
func (m *BasicMechanism) ValidateRequest(c *gin.Context, msg *Message) (Status, error) {
	cred := msg.Params.Credential
	if cred == nil {
		header := c.GetHeader("Authorization")
		if header == "" {
			if msg.Protected || msg.AuthenticationRequest {
				return m.challenge(c, msg), nil
			}
			return msg.DoNothing(), nil
		}

		basic, err := credential.ParseBasicAuth(header)
		if err != nil {
			return m.challenge(c, msg), nil
		}
		cred = basic
	}

	result, err := msg.Validate(cred)
	if err != nil {
		return NotDone, err
	}
	if result.Status() == identitystore.Valid {
		return msg.NotifyLogin(result), nil
	}
	return m.challenge(c, msg), nil
}

func (m *BasicMechanism) challenge(c *gin.Context, msg *Message) Status {
	realm := m.Realm
	if realm == "" {
		realm = "idgate"
	}
	c.Header("WWW-Authenticate", "Basic realm="+strconv.Quote(realm))
	return msg.ResponseUnauthorized()
}
