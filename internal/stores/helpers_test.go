package stores

import (
	"testing"

	"github.com/go-authgate/idgate/internal/identitystore"
	"github.com/go-authgate/idgate/internal/passwordhash"

	"github.com/stretchr/testify/require"
)

var allGroups = identitystore.NewGrant(identitystore.PermissionGetGroups)

// fastHash returns a PBKDF2 hasher at the minimum iteration count.
func fastHash(t *testing.T) passwordhash.PasswordHash {
	t.Helper()
	h := passwordhash.NewPbkdf2()
	require.NoError(t, h.Initialize(map[string]string{passwordhash.ParamIterations: "1024"}))
	return h
}

func mustHash(t *testing.T, h passwordhash.PasswordHash, password string) string {
	t.Helper()
	encoded, err := h.Generate([]byte(password))
	require.NoError(t, err)
	return encoded
}
