package stores

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-authgate/idgate/internal/identitystore"

	"github.com/go-ldap/ldap/v3"
)

// DefaultLDAPPriority is the priority of an LDAPStore without one configured.
const DefaultLDAPPriority = 80

// SearchScope limits how deep a directory search descends.
type SearchScope int

const (
	ScopeSubtree SearchScope = iota
	ScopeOneLevel
)

// ParseSearchScope accepts "subtree" and "one_level". Empty means subtree.
func ParseSearchScope(s string) (SearchScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "subtree":
		return ScopeSubtree, nil
	case "one_level", "onelevel":
		return ScopeOneLevel, nil
	default:
		return 0, fmt.Errorf("%w: unknown ldap search scope %q", ErrInvalidConfig, s)
	}
}

func (s SearchScope) ldap() int {
	if s == ScopeOneLevel {
		return ldap.ScopeSingleLevel
	}
	return ldap.ScopeWholeSubtree
}

// LDAPConfig configures an LDAPStore.
type LDAPConfig struct {
	Settings identitystore.Settings

	URL          string
	BindDN       string
	BindPassword string

	// CallerBaseDN composes the caller DN directly as <CallerNameAttribute>=<name>,<CallerBaseDN>.
	// When CallerSearchBase is set the DN is searched for instead.
	CallerBaseDN        string
	CallerNameAttribute string
	CallerSearchBase    string
	CallerSearchFilter  string
	CallerSearchScope   SearchScope

	// GroupSearchBase enables group lookup by member search. Without it groups
	// come from the caller's GroupMemberOfAttribute.
	GroupSearchBase        string
	GroupSearchFilter      string
	GroupSearchScope       SearchScope
	GroupNameAttribute     string
	GroupMemberAttribute   string
	GroupMemberOfAttribute string

	MaxResults  int
	DialTimeout time.Duration
}

func (c LDAPConfig) withDefaults() LDAPConfig {
	if c.Settings.ID == "" {
		c.Settings.ID = "ldap"
	}
	if c.Settings.Priority == 0 {
		c.Settings.Priority = DefaultLDAPPriority
	}
	if c.CallerNameAttribute == "" {
		c.CallerNameAttribute = "uid"
	}
	if c.GroupNameAttribute == "" {
		c.GroupNameAttribute = "cn"
	}
	if c.GroupMemberAttribute == "" {
		c.GroupMemberAttribute = "member"
	}
	if c.GroupMemberOfAttribute == "" {
		c.GroupMemberOfAttribute = "memberOf"
	}
	if c.MaxResults == 0 {
		c.MaxResults = 1000
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}

// LDAPConn is the subset of *ldap.Conn used by LDAPStore.
type LDAPConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	SetTimeout(d time.Duration)
	Close() error
}

// LDAPDialer opens a connection to url.
type LDAPDialer func(ctx context.Context, url string, timeout time.Duration) (LDAPConn, error)

type ldapConn struct {
	*ldap.Conn
}

func (c ldapConn) Close() error {
	c.Conn.Close()
	return nil
}

// DialLDAP dials with go-ldap.
func DialLDAP(ctx context.Context, url string, timeout time.Duration) (LDAPConn, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	conn, err := ldap.DialURL(url, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(timeout)
	return ldapConn{conn}, nil
}

// LDAPStore validates callers with an LDAP bind and reads their groups from
// the directory.
type LDAPStore struct {
	identitystore.Base

	cfg  LDAPConfig
	dial LDAPDialer
}

// NewLDAPStore creates a store. A nil dialer uses DialLDAP.
func NewLDAPStore(cfg LDAPConfig, dial LDAPDialer) (*LDAPStore, error) {
	cfg = cfg.withDefaults()
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: ldap url is required", ErrInvalidConfig)
	}
	if cfg.CallerBaseDN == "" && cfg.CallerSearchBase == "" {
		return nil, fmt.Errorf("%w: ldap needs a caller base dn or caller search base", ErrInvalidConfig)
	}
	if dial == nil {
		dial = DialLDAP
	}

	s := &LDAPStore{cfg: cfg, dial: dial}
	s.Base = identitystore.NewBase(cfg.Settings, passwordValidators(s.validatePassword))
	return s, nil
}

func (s *LDAPStore) connect(ctx context.Context) (LDAPConn, error) {
	conn, err := s.dial(ctx, s.cfg.URL, s.cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLDAPConnection, err)
	}
	// go-ldap requests do not take a context; bound each one by the deadline
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	}
	return conn, nil
}

// serviceBind binds with the configured bind DN. Anonymous when none is set.
func (s *LDAPStore) serviceBind(conn LDAPConn) error {
	if s.cfg.BindDN == "" {
		return nil
	}
	if err := conn.Bind(s.cfg.BindDN, s.cfg.BindPassword); err != nil {
		return fmt.Errorf("%w: service bind: %v", ErrLDAPConnection, err)
	}
	return nil
}

func (s *LDAPStore) validatePassword(ctx context.Context, name, password string) (*identitystore.Result, error) {
	// an empty password would be an unauthenticated bind
	if password == "" {
		return identitystore.InvalidResult, nil
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := s.serviceBind(conn); err != nil {
		return nil, err
	}
	dn, err := s.callerDN(conn, name)
	if err != nil {
		return nil, err
	}
	if dn == "" {
		return identitystore.InvalidResult, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := conn.Bind(dn, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return identitystore.InvalidResult, nil
		}
		return nil, fmt.Errorf("%w: caller bind: %v", ErrLDAPConnection, err)
	}

	var groups []string
	if s.Settings().ValidationTypes.Has(identitystore.ProvideGroups) {
		if err := s.serviceBind(conn); err != nil {
			return nil, err
		}
		if groups, err = s.groups(conn, dn); err != nil {
			return nil, err
		}
	}

	return identitystore.NewValidResult(identitystore.Identity{
		StoreID:    s.Settings().ID,
		CallerName: name,
		CallerDN:   dn,
		Groups:     groups,
	})
}

// CallerGroups looks up the groups of the caller, resolving its DN when the
// result came from another store. It requires PermissionGetGroups.
func (s *LDAPStore) CallerGroups(
	ctx context.Context,
	grant identitystore.Grant,
	result *identitystore.Result,
) ([]string, error) {
	if err := grant.Require(identitystore.PermissionGetGroups); err != nil {
		return nil, err
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := s.serviceBind(conn); err != nil {
		return nil, err
	}

	dn := result.CallerDN()
	if dn == "" || result.StoreID() != s.Settings().ID {
		if dn, err = s.callerDN(conn, result.CallerName()); err != nil {
			return nil, err
		}
		if dn == "" {
			return []string{}, nil
		}
	}
	return s.groups(conn, dn)
}

// callerDN returns the DN of name, or "" when a search finds no single match.
// conn must already carry the service bind.
func (s *LDAPStore) callerDN(conn LDAPConn, name string) (string, error) {
	if s.cfg.CallerSearchBase == "" {
		return s.cfg.CallerNameAttribute + "=" + ldap.EscapeDN(name) + "," + s.cfg.CallerBaseDN, nil
	}

	filter := "(" + s.cfg.CallerNameAttribute + "=" + ldap.EscapeFilter(name) + ")"
	if s.cfg.CallerSearchFilter != "" {
		filter = "(&" + s.cfg.CallerSearchFilter + filter + ")"
	}

	res, err := conn.Search(ldap.NewSearchRequest(
		s.cfg.CallerSearchBase,
		s.cfg.CallerSearchScope.ldap(),
		ldap.NeverDerefAliases,
		2, 0, false,
		filter,
		[]string{"dn"},
		nil,
	))
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return "", nil
		}
		return "", fmt.Errorf("%w: caller search: %v", ErrLDAPConnection, err)
	}
	// an ambiguous name never authenticates
	if len(res.Entries) != 1 {
		return "", nil
	}
	return res.Entries[0].DN, nil
}

func (s *LDAPStore) groups(conn LDAPConn, callerDN string) ([]string, error) {
	if s.cfg.GroupSearchBase == "" {
		return s.memberOfGroups(conn, callerDN)
	}

	filter := "(" + s.cfg.GroupMemberAttribute + "=" + ldap.EscapeFilter(callerDN) + ")"
	if s.cfg.GroupSearchFilter != "" {
		filter = "(&" + s.cfg.GroupSearchFilter + filter + ")"
	}

	res, err := conn.Search(ldap.NewSearchRequest(
		s.cfg.GroupSearchBase,
		s.cfg.GroupSearchScope.ldap(),
		ldap.NeverDerefAliases,
		s.cfg.MaxResults, 0, false,
		filter,
		[]string{s.cfg.GroupNameAttribute},
		nil,
	))
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		return nil, fmt.Errorf("%w: group search: %v", ErrLDAPConnection, err)
	}

	groups := []string{}
	if res == nil {
		return groups, nil
	}
	for _, e := range res.Entries {
		groups = append(groups, e.GetAttributeValues(s.cfg.GroupNameAttribute)...)
	}
	return groups, nil
}

// memberOfGroups reads the memberOf values of the caller entry and keeps the
// group name RDN of each.
func (s *LDAPStore) memberOfGroups(conn LDAPConn, callerDN string) ([]string, error) {
	res, err := conn.Search(ldap.NewSearchRequest(
		callerDN,
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 0, false,
		"(objectClass=*)",
		[]string{s.cfg.GroupMemberOfAttribute},
		nil,
	))
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: memberOf lookup: %v", ErrLDAPConnection, err)
	}

	groups := []string{}
	for _, e := range res.Entries {
		for _, groupDN := range e.GetAttributeValues(s.cfg.GroupMemberOfAttribute) {
			if name, ok := rdnValue(groupDN, s.cfg.GroupNameAttribute); ok {
				groups = append(groups, name)
			}
		}
	}
	return groups, nil
}

// rdnValue returns the value of attr in the first RDN of dn.
func rdnValue(dn, attr string) (string, bool) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) == 0 {
		return "", false
	}
	for _, a := range parsed.RDNs[0].Attributes {
		if strings.EqualFold(a.Type, attr) {
			return a.Value, true
		}
	}
	return "", false
}
