// Package rememberme issues and validates long-lived login tokens that let a
// caller skip the interactive login after the session expires.
package rememberme

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/idgate/internal/cache"
	"github.com/go-authgate/idgate/internal/credential"
	"github.com/go-authgate/idgate/internal/identitystore"
	"github.com/go-authgate/idgate/internal/metrics"
	"github.com/go-authgate/idgate/internal/util"
)

const (
	// DefaultTTL matches the default remember-me cookie max age.
	DefaultTTL = 24 * time.Hour

	tokenBytes = 32
	keyPrefix  = "rememberme:"
)

var ErrEmptyCaller = errors.New("rememberme: caller name is required")

// Entry is what a token resolves to.
type Entry struct {
	Caller   string    `json:"caller"`
	Groups   []string  `json:"groups"`
	IssuedAt time.Time `json:"issued_at"`
}

// Store keeps login tokens in a cache keyed by the SHA-256 hex of the token.
// The raw token is never stored.
type Store struct {
	identitystore.Base

	cache   cache.Cache[Entry]
	ttl     time.Duration
	metrics metrics.Recorder
	now     func() time.Time
}

// New creates a token store. A non-positive ttl means DefaultTTL.
func New(c cache.Cache[Entry], ttl time.Duration, m metrics.Recorder) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if m == nil {
		m = metrics.NewNoopMetrics()
	}
	s := &Store{cache: c, ttl: ttl, metrics: m, now: time.Now}
	s.Base = identitystore.NewBase(identitystore.Settings{ID: "remember-me"}, identitystore.Validators{
		credential.KindRememberMe: func(ctx context.Context, cred credential.Credential) (*identitystore.Result, error) {
			rm, ok := cred.(credential.RememberMe)
			if !ok {
				return identitystore.InvalidResult, nil
			}
			return s.validateToken(ctx, rm)
		},
	})
	return s
}

// TTL is the lifetime of issued tokens.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// GenerateLoginToken issues a token for the caller and its groups.
func (s *Store) GenerateLoginToken(ctx context.Context, caller string, groups []string) (string, error) {
	if caller == "" {
		return "", ErrEmptyCaller
	}

	token, err := util.RandomToken(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("rememberme: generate token: %w", err)
	}

	entry := Entry{Caller: caller, Groups: groups, IssuedAt: s.now().UTC()}
	if err := s.cache.Set(ctx, key(token), entry, s.ttl); err != nil {
		return "", fmt.Errorf("rememberme: store token: %w", err)
	}

	s.metrics.RecordRememberMeToken("issued")
	log.Printf("[RememberMe] Issued login token caller=%s", caller)
	return token, nil
}

// validateToken resolves a remember-me credential. Unknown or expired tokens are
// INVALID; cache faults are returned as errors.
func (s *Store) validateToken(ctx context.Context, cred credential.RememberMe) (*identitystore.Result, error) {
	if !cred.Valid() {
		return identitystore.InvalidResult, nil
	}

	entry, err := s.cache.Get(ctx, key(cred.Token))
	if errors.Is(err, cache.ErrCacheMiss) {
		s.metrics.RecordRememberMeToken("rejected")
		return identitystore.InvalidResult, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rememberme: lookup token: %w", err)
	}

	s.metrics.RecordRememberMeToken("accepted")
	return identitystore.NewValidResult(identitystore.Identity{
		StoreID:    s.Settings().ID,
		CallerName: entry.Caller,
		Groups:     entry.Groups,
	})
}

// RemoveLoginToken revokes a token. Removing an unknown token is not an error.
func (s *Store) RemoveLoginToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.cache.Delete(ctx, key(token)); err != nil {
		return fmt.Errorf("rememberme: remove token: %w", err)
	}
	s.metrics.RecordRememberMeToken("removed")
	return nil
}

func key(token string) string {
	return keyPrefix + util.SHA256Hex(token)
}
