package bootstrap

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-authgate/idgate/internal/cache"
	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/httpclient"
	"github.com/go-authgate/idgate/internal/identitystore"
	"github.com/go-authgate/idgate/internal/metrics"
	"github.com/go-authgate/idgate/internal/store"
	"github.com/go-authgate/idgate/internal/stores"
)

// NewIdentityHandler builds the stores named in IDENTITY_STORES and the handler
// that consults them. db is required when the database store is enabled.
// groupCache may be nil.
func NewIdentityHandler(
	cfg *config.Config,
	db *store.Store,
	groupCache cache.Cache[[]string],
	m metrics.Recorder,
) (*identitystore.Handler, error) {
	var list []identitystore.Store

	for _, kind := range cfg.IdentityStores {
		s, err := newStore(cfg, kind, db)
		if err != nil {
			return nil, fmt.Errorf("identity store %s: %w", kind, err)
		}
		if groupCache != nil && cfg.GroupCacheTTL > 0 {
			s = stores.NewCachedGroups(s, groupCache, cfg.GroupCacheTTL)
		}
		settings := s.Settings()
		log.Printf("[IdentityStore] Registered store id=%s priority=%d types=%s",
			settings.ID, settings.Priority, settings.ValidationTypes)
		list = append(list, s)
	}

	policy, err := identitystore.ParsePolicy(cfg.HandlerPolicy)
	if err != nil {
		return nil, err
	}

	return identitystore.NewHandler(list,
		identitystore.WithStoreTimeout(cfg.StoreTimeout),
		identitystore.WithPolicy(policy),
		identitystore.WithRecorder(m),
	), nil
}

func newStore(cfg *config.Config, kind string, db *store.Store) (identitystore.Store, error) {
	switch kind {
	case config.StoreMemory:
		return newMemoryStore(cfg)
	case config.StoreDatabase:
		return newDatabaseStore(cfg, db)
	case config.StoreLDAP:
		return newLDAPStore(cfg)
	case config.StoreHTTPAPI:
		return newHTTPAPIStore(cfg)
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}

func newMemoryStore(cfg *config.Config) (identitystore.Store, error) {
	settings, err := settingsFor("memory", cfg.MemoryPriority, cfg.MemoryValidationTypes)
	if err != nil {
		return nil, err
	}
	hash, err := NewPasswordHash(cfg)
	if err != nil {
		return nil, err
	}

	s := stores.NewMemoryStore(settings, hash)
	for _, entry := range cfg.MemoryCallers {
		name, caller, err := stores.ParseMemoryCaller(entry)
		if err != nil {
			return nil, err
		}
		s.Put(name, caller)
	}
	log.Printf("[IdentityStore] Memory store seeded with %d callers", len(cfg.MemoryCallers))
	return s, nil
}

func newDatabaseStore(cfg *config.Config, db *store.Store) (identitystore.Store, error) {
	if db == nil {
		return nil, errors.New("database is not initialized")
	}
	settings, err := settingsFor("database", cfg.DatabasePriority, cfg.DatabaseValidationTypes)
	if err != nil {
		return nil, err
	}
	hash, err := NewPasswordHash(cfg)
	if err != nil {
		return nil, err
	}
	return stores.NewDatabaseStore(db, stores.DatabaseConfig{
		Settings:    settings,
		CallerQuery: cfg.DatabaseCallerQuery,
		GroupsQuery: cfg.DatabaseGroupsQuery,
		Hash:        hash,
	})
}

func newLDAPStore(cfg *config.Config) (identitystore.Store, error) {
	settings, err := settingsFor("ldap", cfg.LDAPPriority, cfg.LDAPValidationTypes)
	if err != nil {
		return nil, err
	}
	callerScope, err := stores.ParseSearchScope(cfg.LDAPCallerSearchScope)
	if err != nil {
		return nil, err
	}
	groupScope, err := stores.ParseSearchScope(cfg.LDAPGroupSearchScope)
	if err != nil {
		return nil, err
	}

	log.Printf("[IdentityStore] LDAP store enabled: %s", cfg.LDAPURL)
	return stores.NewLDAPStore(stores.LDAPConfig{
		Settings:               settings,
		URL:                    cfg.LDAPURL,
		BindDN:                 cfg.LDAPBindDN,
		BindPassword:           cfg.LDAPBindPassword,
		CallerBaseDN:           cfg.LDAPCallerBaseDN,
		CallerNameAttribute:    cfg.LDAPCallerNameAttribute,
		CallerSearchBase:       cfg.LDAPCallerSearchBase,
		CallerSearchFilter:     cfg.LDAPCallerSearchFilter,
		CallerSearchScope:      callerScope,
		GroupSearchBase:        cfg.LDAPGroupSearchBase,
		GroupSearchFilter:      cfg.LDAPGroupSearchFilter,
		GroupSearchScope:       groupScope,
		GroupNameAttribute:     cfg.LDAPGroupNameAttribute,
		GroupMemberAttribute:   cfg.LDAPGroupMemberAttribute,
		GroupMemberOfAttribute: cfg.LDAPGroupMemberOfAttribute,
		MaxResults:             cfg.LDAPMaxResults,
		DialTimeout:            cfg.LDAPTimeout,
	}, stores.DialLDAP)
}

func newHTTPAPIStore(cfg *config.Config) (identitystore.Store, error) {
	settings, err := settingsFor("http_api", cfg.HTTPAPIPriority, cfg.HTTPAPIValidationTypes)
	if err != nil {
		return nil, err
	}
	mode, err := httpclient.ParseMode(cfg.HTTPAPIAuthMode)
	if err != nil {
		return nil, err
	}
	signer, err := httpclient.NewSigner(mode, cfg.HTTPAPIAuthSecret, httpclient.Headers{
		Secret: cfg.HTTPAPIAuthHeader,
	})
	if err != nil {
		return nil, err
	}

	client := httpclient.New(signer, httpclient.Options{
		Timeout:            cfg.HTTPAPITimeout,
		InsecureSkipVerify: cfg.HTTPAPIInsecureSkipVerify,
		MaxRetries:         cfg.HTTPAPIMaxRetries,
		RetryDelay:         cfg.HTTPAPIRetryDelay,
		RetryMaxDelay:      cfg.HTTPAPIMaxRetryDelay,
	})

	log.Printf("[IdentityStore] HTTP API store enabled: %s (auth mode: %s)", cfg.HTTPAPIURL, mode)
	return stores.NewHTTPAPIStore(stores.HTTPAPIConfig{Settings: settings, URL: cfg.HTTPAPIURL}, client)
}
