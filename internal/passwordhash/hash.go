package passwordhash

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedHash is returned when an encoded hash cannot be parsed
	ErrMalformedHash = errors.New("malformed password hash")

	// ErrUnsupportedAlgorithm is returned for an unknown algorithm name
	ErrUnsupportedAlgorithm = errors.New("unsupported password hash algorithm")

	// ErrInvalidParameter is returned when a configured parameter is out of range
	ErrInvalidParameter = errors.New("invalid password hash parameter")
)

// Algorithm names accepted by New.
const (
	NamePbkdf2 = "pbkdf2"
	NameBcrypt = "bcrypt"
)

// PasswordHash generates and verifies stored password hashes.
type PasswordHash interface {
	// Initialize applies implementation specific parameters. Unknown keys are ignored.
	Initialize(params map[string]string) error
	// Generate returns the encoded hash of password.
	Generate(password []byte) (string, error)
	// Verify reports whether password matches hashed. Malformed input never matches.
	Verify(password []byte, hashed string) bool
}

// New returns an initialized PasswordHash by name.
func New(name string, params map[string]string) (PasswordHash, error) {
	var h PasswordHash
	switch strings.ToLower(name) {
	case NamePbkdf2, "":
		h = NewPbkdf2()
	case NameBcrypt:
		h = NewBcrypt()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}

	if err := h.Initialize(params); err != nil {
		return nil, err
	}
	return h, nil
}

// ParseParams turns "Key=Value" pairs into a parameter map.
func ParseParams(pairs []string) (map[string]string, error) {
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidParameter, pair)
		}
		params[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return params, nil
}
