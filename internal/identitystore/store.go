package identitystore

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-authgate/idgate/internal/credential"
)

// DefaultPriority is used when a store does not configure one.
const DefaultPriority = 100

// ValidationType is a set of the roles a store plays in aggregation.
type ValidationType uint8

const (
	// Validate stores check credentials.
	Validate ValidationType = 1 << iota
	// ProvideGroups stores contribute group memberships.
	ProvideGroups
)

// DefaultValidationTypes is used when a store does not configure any.
const DefaultValidationTypes = Validate | ProvideGroups

// Has reports whether every type in other is present in t.
func (t ValidationType) Has(other ValidationType) bool {
	return t&other == other
}

func (t ValidationType) String() string {
	var parts []string
	if t.Has(Validate) {
		parts = append(parts, "VALIDATE")
	}
	if t.Has(ProvideGroups) {
		parts = append(parts, "PROVIDE_GROUPS")
	}
	return strings.Join(parts, ",")
}

// ParseValidationTypes parses a comma separated list such as "validate,provide_groups".
func ParseValidationTypes(s string) (ValidationType, error) {
	var t ValidationType
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "validate":
			t |= Validate
		case "provide_groups", "groups":
			t |= ProvideGroups
		case "":
		default:
			return 0, fmt.Errorf("unknown validation type: %q", part)
		}
	}
	return t, nil
}

// Settings is the per-store configuration consulted by the Handler.
type Settings struct {
	ID              string
	Priority        int
	ValidationTypes ValidationType
}

// WithDefaults replaces a zero priority and an empty validation type set
// with the defaults.
func (s Settings) WithDefaults() Settings {
	if s.Priority == 0 {
		s.Priority = DefaultPriority
	}
	if s.ValidationTypes == 0 {
		s.ValidationTypes = DefaultValidationTypes
	}
	return s
}

// Store validates credentials and/or provides caller groups.
//
// Validate must return NotValidatedResult, never an error, when the store has no
// VALIDATE role or does not handle the credential kind, and InvalidResult for a
// rejected credential. A non-nil error means the outcome could not be determined.
//
// CallerGroups returns an empty, non-nil slice when the caller has no groups.
type Store interface {
	Settings() Settings
	Validate(ctx context.Context, cred credential.Credential) (*Result, error)
	CallerGroups(ctx context.Context, grant Grant, result *Result) ([]string, error)
}
