package identitystore

import "fmt"

// Permission names an operation a store may gate.
type Permission string

// PermissionGetGroups gates CallerGroups on stores that enforce it.
const PermissionGetGroups Permission = "getGroups"

// Grant is the capability token handed to CallerGroups. The zero value grants nothing.
type Grant struct {
	perms map[Permission]struct{}
}

// NewGrant returns a grant holding the given permissions.
func NewGrant(perms ...Permission) Grant {
	g := Grant{perms: make(map[Permission]struct{}, len(perms))}
	for _, p := range perms {
		g.perms[p] = struct{}{}
	}
	return g
}

// Has reports whether the grant holds p.
func (g Grant) Has(p Permission) bool {
	_, ok := g.perms[p]
	return ok
}

// Require returns ErrAccessDenied if the grant does not hold p.
func (g Grant) Require(p Permission) error {
	if !g.Has(p) {
		return fmt.Errorf("%w: missing permission %q", ErrAccessDenied, p)
	}
	return nil
}
