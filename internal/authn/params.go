package authn

import "github.com/go-authgate/idgate/internal/credential"

// Parameters tune an explicitly triggered authentication.
type Parameters struct {
	// Credential, when set, is validated instead of anything in the request.
	Credential credential.Credential
	// NewAuthentication discards any dialog state and established caller first.
	NewAuthentication bool
	// RememberMe asks a remember-me mechanism to issue a login token on success.
	RememberMe bool
}

// WithParams starts an empty Parameters value for chaining.
func WithParams() Parameters {
	return Parameters{}
}

func (p Parameters) WithCredential(c credential.Credential) Parameters {
	p.Credential = c
	return p
}

func (p Parameters) WithNewAuthentication(b bool) Parameters {
	p.NewAuthentication = b
	return p
}

func (p Parameters) WithRememberMe(b bool) Parameters {
	p.RememberMe = b
	return p
}
