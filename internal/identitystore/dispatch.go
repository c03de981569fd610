package identitystore

import (
	"context"

	"github.com/go-authgate/idgate/internal/credential"
)

// ValidateFunc validates one credential kind.
type ValidateFunc func(ctx context.Context, cred credential.Credential) (*Result, error)

// Validators routes a credential to the function registered for its exact kind.
// Kinds without an entry are not validated.
type Validators map[credential.Kind]ValidateFunc

// Validate dispatches cred. A nil credential or an unregistered kind yields
// NotValidatedResult.
func (v Validators) Validate(ctx context.Context, cred credential.Credential) (*Result, error) {
	if cred == nil {
		return NotValidatedResult, nil
	}
	fn, ok := v[cred.Kind()]
	if !ok {
		return NotValidatedResult, nil
	}
	return fn(ctx, cred)
}

// Handles reports whether a function is registered for kind.
func (v Validators) Handles(kind credential.Kind) bool {
	_, ok := v[kind]
	return ok
}

// Base gives stores their Settings and a dispatch table; CallerGroups
// returns no groups. Stores embed it and override what they support.
type Base struct {
	settings   Settings
	validators Validators
}

// NewBase applies defaults to s.
func NewBase(s Settings, validators Validators) Base {
	return Base{settings: s.WithDefaults(), validators: validators}
}

func (b Base) Settings() Settings {
	return b.settings
}

// Validate honors the VALIDATE role before dispatching.
func (b Base) Validate(ctx context.Context, cred credential.Credential) (*Result, error) {
	if !b.settings.ValidationTypes.Has(Validate) {
		return NotValidatedResult, nil
	}
	return b.validators.Validate(ctx, cred)
}

func (b Base) CallerGroups(context.Context, Grant, *Result) ([]string, error) {
	return []string{}, nil
}
