package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-authgate/idgate/internal/identitystore"
	"github.com/go-authgate/idgate/internal/passwordhash"
	"github.com/go-authgate/idgate/internal/store"
)

// DefaultDatabasePriority is the priority of a DatabaseStore without one configured.
const DefaultDatabasePriority = 70

// Queries over the built-in schema. Both take the caller name as their only parameter.
const (
	DefaultCallerQuery = "SELECT password_hash FROM callers WHERE name = ?"
	DefaultGroupsQuery = "SELECT group_name FROM caller_groups WHERE caller_name = ? ORDER BY group_name"
)

// DatabaseConfig configures a DatabaseStore.
type DatabaseConfig struct {
	Settings identitystore.Settings

	// CallerQuery selects the encoded password hash of a caller.
	CallerQuery string
	// GroupsQuery selects the group names of a caller, one per row.
	GroupsQuery string

	Hash passwordhash.PasswordHash
}

// DatabaseStore validates callers against SQL queries run through gorm.
type DatabaseStore struct {
	identitystore.Base

	db          *store.Store
	hash        passwordhash.PasswordHash
	callerQuery string
	groupsQuery string
}

func NewDatabaseStore(db *store.Store, cfg DatabaseConfig) (*DatabaseStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database store needs a database", ErrInvalidConfig)
	}
	if cfg.Hash == nil {
		cfg.Hash = passwordhash.NewPbkdf2()
	}
	if cfg.Settings.ID == "" {
		cfg.Settings.ID = "database"
	}
	if cfg.Settings.Priority == 0 {
		cfg.Settings.Priority = DefaultDatabasePriority
	}
	if cfg.CallerQuery == "" {
		cfg.CallerQuery = DefaultCallerQuery
	}
	if cfg.GroupsQuery == "" {
		cfg.GroupsQuery = DefaultGroupsQuery
	}

	s := &DatabaseStore{
		db:          db,
		hash:        cfg.Hash,
		callerQuery: cfg.CallerQuery,
		groupsQuery: cfg.GroupsQuery,
	}
	s.Base = identitystore.NewBase(cfg.Settings, passwordValidators(s.validatePassword))
	return s, nil
}

func (s *DatabaseStore) validatePassword(ctx context.Context, name, password string) (*identitystore.Result, error) {
	hashed, err := s.db.LookupString(ctx, s.callerQuery, name)
	if errors.Is(err, store.ErrRecordNotFound) {
		return identitystore.InvalidResult, nil
	}
	if err != nil {
		return nil, fmt.Errorf("caller query: %w", err)
	}

	if !s.hash.Verify([]byte(password), hashed) {
		return identitystore.InvalidResult, nil
	}

	settings := s.Settings()
	var groups []string
	if settings.ValidationTypes.Has(identitystore.ProvideGroups) {
		groups, err = s.db.LookupStrings(ctx, s.groupsQuery, name)
		if err != nil {
			return nil, fmt.Errorf("groups query: %w", err)
		}
	}

	return identitystore.NewValidResult(identitystore.Identity{
		StoreID:    settings.ID,
		CallerName: name,
		Groups:     groups,
	})
}

// CallerGroups runs the groups query for the caller. It requires PermissionGetGroups.
func (s *DatabaseStore) CallerGroups(
	ctx context.Context,
	grant identitystore.Grant,
	result *identitystore.Result,
) ([]string, error) {
	if err := grant.Require(identitystore.PermissionGetGroups); err != nil {
		return nil, err
	}

	groups, err := s.db.LookupStrings(ctx, s.groupsQuery, result.CallerName())
	if err != nil {
		return nil, fmt.Errorf("groups query: %w", err)
	}
	return groups, nil
}
