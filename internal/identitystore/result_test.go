package identitystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResult_NonValidRejectsIdentity(t *testing.T) {
	tests := []struct {
		name string
		id   *Identity
	}{
		{"store id", &Identity{StoreID: "db"}},
		{"caller name", &Identity{CallerName: "alice"}},
		{"dn", &Identity{CallerDN: "uid=alice,ou=people"}},
		{"unique id", &Identity{CallerUniqueID: "42"}},
		{"groups", &Identity{Groups: []string{"admins"}}},
		{"empty identity", &Identity{}},
	}

	for _, status := range []Status{NotValidated, Invalid} {
		for _, tt := range tests {
			t.Run(status.String()+"/"+tt.name, func(t *testing.T) {
				r, err := NewResult(status, tt.id)
				assert.ErrorIs(t, err, ErrBadStatus)
				assert.Nil(t, r)
			})
		}
	}
}

func TestNewResult_NonValidWithoutIdentity(t *testing.T) {
	r, err := NewResult(Invalid, nil)
	require.NoError(t, err)
	assert.Equal(t, Invalid, r.Status())
	assert.Empty(t, r.CallerName())
	assert.Empty(t, r.StoreID())
	assert.NotNil(t, r.Groups())
	assert.Empty(t, r.Groups())
}

func TestNewResult_ValidRequiresPrincipal(t *testing.T) {
	tests := []struct {
		name string
		id   *Identity
	}{
		{"nil identity", nil},
		{"empty name", &Identity{}},
		{"blank name", &Identity{CallerName: "   "}},
		{"tab name", &Identity{CallerName: "\t", Groups: []string{"a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResult(Valid, tt.id)
			assert.ErrorIs(t, err, ErrEmptyPrincipal)
			assert.Nil(t, r)
		})
	}
}

func TestNewValidResult(t *testing.T) {
	r, err := NewValidResult(Identity{
		StoreID:        "ldap",
		CallerName:     "alice",
		CallerDN:       "uid=alice,ou=people,dc=example,dc=com",
		CallerUniqueID: "u-1",
		Groups:         []string{"b", "a", "b", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, Valid, r.Status())
	assert.Equal(t, "ldap", r.StoreID())
	assert.Equal(t, "alice", r.CallerPrincipal().Name())
	assert.Equal(t, "alice", r.CallerName())
	assert.Equal(t, "uid=alice,ou=people,dc=example,dc=com", r.CallerDN())
	assert.Equal(t, "u-1", r.CallerUniqueID())
	assert.Equal(t, []string{"a", "b"}, r.Groups())
}

func TestResult_GroupsIsACopy(t *testing.T) {
	r := MustValidResult(Identity{CallerName: "alice", Groups: []string{"admins"}})

	groups := r.Groups()
	groups[0] = "mutated"

	assert.Equal(t, []string{"admins"}, r.Groups())
}

func TestResult_WithGroups(t *testing.T) {
	r := MustValidResult(Identity{CallerName: "alice", Groups: []string{"x"}})

	merged := r.withGroups([]string{"x", "y"})

	assert.Equal(t, []string{"x", "y"}, merged.Groups())
	assert.Equal(t, []string{"x"}, r.Groups(), "original must stay unchanged")
}

func TestMustValidResult_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustValidResult(Identity{})
	})
}

func TestSingletons(t *testing.T) {
	assert.Equal(t, Invalid, InvalidResult.Status())
	assert.Equal(t, NotValidated, NotValidatedResult.Status())
	assert.Equal(t, "INVALID", InvalidResult.String())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "NOT_VALIDATED", NotValidated.String())
	assert.Equal(t, "VALID", Valid.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}

func TestNewCallerPrincipal(t *testing.T) {
	p, err := NewCallerPrincipal("bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", p.String())

	_, err = NewCallerPrincipal(" ")
	assert.ErrorIs(t, err, ErrEmptyPrincipal)
}
