package stores

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-authgate/idgate/internal/identitystore"
	"github.com/go-authgate/idgate/internal/passwordhash"

	"github.com/google/uuid"
)

// MemoryCaller is one seeded caller of a MemoryStore.
type MemoryCaller struct {
	PasswordHash string
	Groups       []string
	UniqueID     string
}

// ErrMalformedMemoryCaller is returned for a seed entry that is not name:hash:groups.
var ErrMalformedMemoryCaller = errors.New("malformed memory caller entry")

// ParseMemoryCaller reads one seed entry of the form name:hash:group|group.
// The encoded hash may itself contain colons, so the name ends at the first
// colon and the groups start after the last one. Groups may be empty.
func ParseMemoryCaller(entry string) (string, MemoryCaller, error) {
	name, rest, ok := strings.Cut(strings.TrimSpace(entry), ":")
	if !ok || name == "" {
		return "", MemoryCaller{}, fmt.Errorf("%w: missing caller name", ErrMalformedMemoryCaller)
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", MemoryCaller{}, fmt.Errorf("%w: caller %s has no password hash", ErrMalformedMemoryCaller, name)
	}

	groups := []string{}
	for _, g := range strings.Split(rest[i+1:], "|") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return name, MemoryCaller{PasswordHash: rest[:i], Groups: groups}, nil
}

// MemoryStore validates callers held in process memory.
type MemoryStore struct {
	identitystore.Base

	hash passwordhash.PasswordHash

	mu      sync.RWMutex
	callers map[string]MemoryCaller
}

// NewMemoryStore creates a store that verifies passwords with hash.
func NewMemoryStore(settings identitystore.Settings, hash passwordhash.PasswordHash) *MemoryStore {
	if settings.ID == "" {
		settings.ID = "memory"
	}
	s := &MemoryStore{
		hash:    hash,
		callers: make(map[string]MemoryCaller),
	}
	s.Base = identitystore.NewBase(settings, passwordValidators(s.validatePassword))
	return s
}

// Put stores a caller with an already encoded password hash.
func (s *MemoryStore) Put(name string, c MemoryCaller) {
	if c.UniqueID == "" {
		c.UniqueID = uuid.New().String()
	}
	c.Groups = slices.Clone(c.Groups)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.callers[name] = c
}

// Add hashes password and stores the caller.
func (s *MemoryStore) Add(name, password string, groups ...string) error {
	encoded, err := s.hash.Generate([]byte(password))
	if err != nil {
		return err
	}
	s.Put(name, MemoryCaller{PasswordHash: encoded, Groups: groups})
	return nil
}

func (s *MemoryStore) lookup(name string) (MemoryCaller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.callers[name]
	return c, ok
}

func (s *MemoryStore) validatePassword(_ context.Context, name, password string) (*identitystore.Result, error) {
	c, ok := s.lookup(name)
	if !ok || !s.hash.Verify([]byte(password), c.PasswordHash) {
		return identitystore.InvalidResult, nil
	}

	settings := s.Settings()
	return identitystore.NewValidResult(identitystore.Identity{
		StoreID:        settings.ID,
		CallerName:     name,
		CallerUniqueID: c.UniqueID,
		Groups:         groupsIfProvided(settings, c.Groups),
	})
}

// CallerGroups requires PermissionGetGroups. Unknown callers have no groups.
func (s *MemoryStore) CallerGroups(
	_ context.Context,
	grant identitystore.Grant,
	result *identitystore.Result,
) ([]string, error) {
	if err := grant.Require(identitystore.PermissionGetGroups); err != nil {
		return nil, err
	}

	c, ok := s.lookup(result.CallerName())
	if !ok {
		return []string{}, nil
	}
	groups := slices.Clone(c.Groups)
	if groups == nil {
		groups = []string{}
	}
	return groups, nil
}
