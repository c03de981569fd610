package authn

import "errors"

var (
	// ErrNoMechanism is returned when a SecurityContext has no mechanism
	ErrNoMechanism = errors.New("authn: no authentication mechanism configured")

	// ErrNoValidator is returned when a mechanism needs an identity store handler and has none
	ErrNoValidator = errors.New("authn: no credential validator configured")

	// ErrSessionSave is returned when dialog state cannot be persisted
	ErrSessionSave = errors.New("authn: failed to save session")
)
