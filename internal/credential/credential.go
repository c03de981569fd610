package credential

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Kind identifies the concrete credential variant.
type Kind string

const (
	KindUsernamePassword Kind = "username_password"
	KindBasic            Kind = "basic"
	KindRememberMe       Kind = "remember_me"
)

func (k Kind) String() string {
	return string(k)
}

var ErrMalformedBasicAuth = errors.New("malformed basic authorization header")

// Credential is the closed set of caller-supplied inputs an identity store can validate.
// Stores dispatch on Kind, never on a supertype relationship.
type Credential interface {
	Kind() Kind
	// Caller returns the caller name the credential claims, or "" if it carries none.
	Caller() string
	// Valid reports whether all required fields are present.
	Valid() bool
}

// UsernamePassword is a name and secret pair, typically posted from a login form.
type UsernamePassword struct {
	Name     string
	Password string
}

func (c UsernamePassword) Kind() Kind     { return KindUsernamePassword }
func (c UsernamePassword) Caller() string { return c.Name }

func (c UsernamePassword) Valid() bool {
	return c.Name != "" && c.Password != ""
}

// BasicAuth is a name and secret pair decoded from an HTTP Basic Authorization header.
// It is a distinct kind: stores that only register UsernamePassword do not see it.
type BasicAuth struct {
	Name     string
	Password string
}

func (c BasicAuth) Kind() Kind     { return KindBasic }
func (c BasicAuth) Caller() string { return c.Name }

func (c BasicAuth) Valid() bool {
	return c.Name != "" && c.Password != ""
}

// AsUsernamePassword converts the header credential to its form equivalent.
func (c BasicAuth) AsUsernamePassword() UsernamePassword {
	return UsernamePassword{Name: c.Name, Password: c.Password}
}

// ParseBasicAuth decodes the value of an Authorization header using the Basic scheme.
func ParseBasicAuth(header string) (BasicAuth, error) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return BasicAuth{}, ErrMalformedBasicAuth
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return BasicAuth{}, ErrMalformedBasicAuth
	}

	name, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return BasicAuth{}, ErrMalformedBasicAuth
	}

	return BasicAuth{Name: name, Password: password}, nil
}

// RememberMe is the opaque login token previously issued to a caller.
type RememberMe struct {
	Token string
}

func (c RememberMe) Kind() Kind     { return KindRememberMe }
func (c RememberMe) Caller() string { return "" }
func (c RememberMe) Valid() bool    { return c.Token != "" }
