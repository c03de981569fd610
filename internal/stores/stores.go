// Package stores provides identity store implementations backed by memory,
// a SQL database, an LDAP directory and an external HTTP API.
package stores

import (
	"context"

	"github.com/go-authgate/idgate/internal/credential"
	"github.com/go-authgate/idgate/internal/identitystore"
)

// passwordFunc validates a caller name and password pair.
type passwordFunc func(ctx context.Context, name, password string) (*identitystore.Result, error)

// passwordValidators registers fn for both username/password and HTTP Basic
// credentials. Each kind keeps its own entry in the table.
func passwordValidators(fn passwordFunc) identitystore.Validators {
	return identitystore.Validators{
		credential.KindUsernamePassword: func(ctx context.Context, cred credential.Credential) (*identitystore.Result, error) {
			c, ok := cred.(credential.UsernamePassword)
			if !ok || !c.Valid() {
				return identitystore.InvalidResult, nil
			}
			return fn(ctx, c.Name, c.Password)
		},
		credential.KindBasic: func(ctx context.Context, cred credential.Credential) (*identitystore.Result, error) {
			c, ok := cred.(credential.BasicAuth)
			if !ok || !c.Valid() {
				return identitystore.InvalidResult, nil
			}
			up := c.AsUsernamePassword()
			return fn(ctx, up.Name, up.Password)
		},
	}
}

// groupsIfProvided returns groups when the store plays the PROVIDE_GROUPS role.
func groupsIfProvided(s identitystore.Settings, groups []string) []string {
	if s.ValidationTypes.Has(identitystore.ProvideGroups) {
		return groups
	}
	return nil
}
