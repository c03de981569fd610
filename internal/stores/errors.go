package stores

import "errors"

var (
	// ErrInvalidConfig is returned when a store is constructed with unusable settings
	ErrInvalidConfig = errors.New("invalid identity store configuration")

	// HTTP API errors
	ErrHTTPAPIConnection  = errors.New("failed to connect to authentication API")
	ErrHTTPAPIInvalidResp = errors.New("invalid response from authentication API")

	// ErrLDAPConnection is returned when the directory cannot be reached or queried
	ErrLDAPConnection = errors.New("ldap connection failure")
)
