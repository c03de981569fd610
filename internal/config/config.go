package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity store kinds accepted in IDENTITY_STORES
const (
	StoreMemory   = "memory"
	StoreDatabase = "database"
	StoreLDAP     = "ldap"
	StoreHTTPAPI  = "http_api"
)

// Authentication mechanism constants
const (
	MechanismForm  = "form"
	MechanismBasic = "basic"
)

// Cache type constants
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Handler aggregation policies
const (
	PolicyFirstValid = "first_valid"
	PolicyAllValid   = "all_valid"
)

type Config struct {
	// Server settings
	ServerAddr            string
	ServerShutdownTimeout time.Duration

	// Session settings
	SessionSecret string
	SessionName   string
	SessionMaxAge int // seconds
	SessionSecure bool

	// Identity store handler
	IdentityStores []string // consulted stores, e.g. "database,ldap"
	StoreTimeout   time.Duration
	HandlerPolicy  string // "first_valid" or "all_valid"

	// Memory store, seeded from "name:hash:group|group" entries
	MemoryCallers         []string
	MemoryPriority        int
	MemoryValidationTypes string

	// Database store
	DatabaseDriver          string // "sqlite" or "postgres"
	DatabaseDSN             string // Database connection string (DSN or path)
	DatabaseCallerQuery     string
	DatabaseGroupsQuery     string
	DatabasePriority        int
	DatabaseValidationTypes string
	DBInitTimeout           time.Duration
	DBCloseTimeout          time.Duration

	// Password hash used by the database store and the hash/useradd commands
	HashAlgorithm  string   // "pbkdf2" or "bcrypt"
	HashParameters []string // "Pbkdf2PasswordHash.Iterations=3072" style entries

	// LDAP store
	LDAPURL                    string
	LDAPBindDN                 string
	LDAPBindPassword           string
	LDAPCallerBaseDN           string
	LDAPCallerNameAttribute    string
	LDAPCallerSearchBase       string
	LDAPCallerSearchFilter     string
	LDAPCallerSearchScope      string // "subtree" or "onelevel"
	LDAPGroupSearchBase        string
	LDAPGroupSearchFilter      string
	LDAPGroupSearchScope       string
	LDAPGroupNameAttribute     string
	LDAPGroupMemberAttribute   string
	LDAPGroupMemberOfAttribute string
	LDAPMaxResults             int
	LDAPTimeout                time.Duration
	LDAPPriority               int
	LDAPValidationTypes        string

	// HTTP API store
	HTTPAPIURL                string
	HTTPAPITimeout            time.Duration
	HTTPAPIInsecureSkipVerify bool
	HTTPAPIAuthMode           string // Authentication mode: "none", "simple", or "hmac"
	HTTPAPIAuthSecret         string // Shared secret for authentication
	HTTPAPIAuthHeader         string // Custom header name for simple mode (default: "X-API-Secret")
	HTTPAPIMaxRetries         int    // Maximum retry attempts (default: 3)
	HTTPAPIRetryDelay         time.Duration
	HTTPAPIMaxRetryDelay      time.Duration
	HTTPAPIPriority           int
	HTTPAPIValidationTypes    string

	// Authentication mechanism
	AuthMechanism     string // "form" or "basic"
	BasicRealm        string
	LoginPage         string
	ErrorPage         string
	UseForwardToLogin bool

	// Remember-me
	RememberMeEnabled    bool
	RememberMeAlways     bool
	RememberMeCookieName string
	RememberMeMaxAge     int // seconds, also the token TTL
	RememberMeSecure     bool
	RememberMeHTTPOnly   bool

	// Cache for remember-me tokens and group lookups
	CacheType         string // "memory" or "redis"
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisConnTimeout  time.Duration
	CacheCloseTimeout time.Duration
	GroupCacheTTL     time.Duration // 0 disables group caching

	// Metrics
	MetricsEnabled bool
	MetricsToken   string // Bearer token for /metrics, empty for none

	// Login throttling on the form post path
	LoginRateLimit int    // requests per minute per client IP, 0 disables
	RateLimitStore string // "memory" or "redis"

	// Access policies, "subject,resource,method" entries separated by ";"
	AccessPolicies []string
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Determine database driver and DSN
	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "idgate.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:            getEnv("SERVER_ADDR", ":8080"),
		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),

		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionName:   getEnv("SESSION_NAME", "idgate_session"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 3600),
		SessionSecure: getEnvBool("SESSION_SECURE", false),

		IdentityStores: getEnvSlice("IDENTITY_STORES", []string{StoreDatabase}),
		StoreTimeout:   getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		HandlerPolicy:  getEnv("HANDLER_POLICY", PolicyFirstValid),

		MemoryCallers:         splitAndTrim(getEnv("MEMORY_CALLERS", ""), ";"),
		MemoryPriority:        getEnvInt("MEMORY_PRIORITY", 100),
		MemoryValidationTypes: getEnv("MEMORY_VALIDATION_TYPES", "validate,provide_groups"),

		DatabaseDriver:          driver,
		DatabaseDSN:             dsn,
		DatabaseCallerQuery:     getEnv("DATABASE_CALLER_QUERY", ""),
		DatabaseGroupsQuery:     getEnv("DATABASE_GROUPS_QUERY", ""),
		DatabasePriority:        getEnvInt("DATABASE_PRIORITY", 70),
		DatabaseValidationTypes: getEnv("DATABASE_VALIDATION_TYPES", "validate,provide_groups"),
		DBInitTimeout:           getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),
		DBCloseTimeout:          getEnvDuration("DB_CLOSE_TIMEOUT", 5*time.Second),

		HashAlgorithm:  getEnv("HASH_ALGORITHM", "pbkdf2"),
		HashParameters: getEnvSlice("HASH_PARAMETERS", nil),

		LDAPURL:                    getEnv("LDAP_URL", ""),
		LDAPBindDN:                 getEnv("LDAP_BIND_DN", ""),
		LDAPBindPassword:           getEnv("LDAP_BIND_PASSWORD", ""),
		LDAPCallerBaseDN:           getEnv("LDAP_CALLER_BASE_DN", ""),
		LDAPCallerNameAttribute:    getEnv("LDAP_CALLER_NAME_ATTRIBUTE", "uid"),
		LDAPCallerSearchBase:       getEnv("LDAP_CALLER_SEARCH_BASE", ""),
		LDAPCallerSearchFilter:     getEnv("LDAP_CALLER_SEARCH_FILTER", ""),
		LDAPCallerSearchScope:      getEnv("LDAP_CALLER_SEARCH_SCOPE", "subtree"),
		LDAPGroupSearchBase:        getEnv("LDAP_GROUP_SEARCH_BASE", ""),
		LDAPGroupSearchFilter:      getEnv("LDAP_GROUP_SEARCH_FILTER", ""),
		LDAPGroupSearchScope:       getEnv("LDAP_GROUP_SEARCH_SCOPE", "subtree"),
		LDAPGroupNameAttribute:     getEnv("LDAP_GROUP_NAME_ATTRIBUTE", "cn"),
		LDAPGroupMemberAttribute:   getEnv("LDAP_GROUP_MEMBER_ATTRIBUTE", "member"),
		LDAPGroupMemberOfAttribute: getEnv("LDAP_GROUP_MEMBER_OF_ATTRIBUTE", "memberOf"),
		LDAPMaxResults:             getEnvInt("LDAP_MAX_RESULTS", 1000),
		LDAPTimeout:                getEnvDuration("LDAP_TIMEOUT", 5*time.Second),
		LDAPPriority:               getEnvInt("LDAP_PRIORITY", 80),
		LDAPValidationTypes:        getEnv("LDAP_VALIDATION_TYPES", "validate,provide_groups"),

		HTTPAPIURL:                getEnv("HTTP_API_URL", ""),
		HTTPAPITimeout:            getEnvDuration("HTTP_API_TIMEOUT", 10*time.Second),
		HTTPAPIInsecureSkipVerify: getEnvBool("HTTP_API_INSECURE_SKIP_VERIFY", false),
		HTTPAPIAuthMode:           getEnv("HTTP_API_AUTH_MODE", "none"),
		HTTPAPIAuthSecret:         getEnv("HTTP_API_AUTH_SECRET", ""),
		HTTPAPIAuthHeader:         getEnv("HTTP_API_AUTH_HEADER", "X-API-Secret"),
		HTTPAPIMaxRetries:         getEnvInt("HTTP_API_MAX_RETRIES", 3),
		HTTPAPIRetryDelay:         getEnvDuration("HTTP_API_RETRY_DELAY", 1*time.Second),
		HTTPAPIMaxRetryDelay:      getEnvDuration("HTTP_API_MAX_RETRY_DELAY", 10*time.Second),
		HTTPAPIPriority:           getEnvInt("HTTP_API_PRIORITY", 90),
		HTTPAPIValidationTypes:    getEnv("HTTP_API_VALIDATION_TYPES", "validate,provide_groups"),

		AuthMechanism:     getEnv("AUTH_MECHANISM", MechanismForm),
		BasicRealm:        getEnv("BASIC_REALM", "idgate"),
		LoginPage:         getEnv("LOGIN_PAGE", "/login"),
		ErrorPage:         getEnv("LOGIN_ERROR_PAGE", "/login-error"),
		UseForwardToLogin: getEnvBool("USE_FORWARD_TO_LOGIN", true),

		RememberMeEnabled:    getEnvBool("REMEMBER_ME_ENABLED", false),
		RememberMeAlways:     getEnvBool("REMEMBER_ME_ALWAYS", false),
		RememberMeCookieName: getEnv("REMEMBER_ME_COOKIE_NAME", "JREMEMBERMEID"),
		RememberMeMaxAge:     getEnvInt("REMEMBER_ME_MAX_AGE", 86400),
		RememberMeSecure:     getEnvBool("REMEMBER_ME_SECURE", true),
		RememberMeHTTPOnly:   getEnvBool("REMEMBER_ME_HTTP_ONLY", true),

		CacheType:         getEnv("CACHE_TYPE", CacheTypeMemory),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RedisConnTimeout:  getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),
		CacheCloseTimeout: getEnvDuration("CACHE_CLOSE_TIMEOUT", 5*time.Second),
		GroupCacheTTL:     getEnvDuration("GROUP_CACHE_TTL", 0),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),

		LoginRateLimit: getEnvInt("LOGIN_RATE_LIMIT", 10),
		RateLimitStore: getEnv("RATE_LIMIT_STORE", CacheTypeMemory),

		AccessPolicies: splitAndTrim(getEnv("ACCESS_POLICIES", ""), ";"),
	}
}

// Validate checks the configuration for values Load cannot reject on its own.
func (c *Config) Validate() error {
	var errs []error

	if len(c.IdentityStores) == 0 {
		errs = append(errs, errors.New("IDENTITY_STORES must name at least one store"))
	}
	for _, s := range c.IdentityStores {
		if !slices.Contains([]string{StoreMemory, StoreDatabase, StoreLDAP, StoreHTTPAPI}, s) {
			errs = append(errs, fmt.Errorf("invalid IDENTITY_STORES entry: %q (must be one of: memory, database, ldap, http_api)", s))
		}
	}

	if c.HandlerPolicy != PolicyFirstValid && c.HandlerPolicy != PolicyAllValid {
		errs = append(errs, fmt.Errorf("invalid HANDLER_POLICY value: %q (must be %q or %q)",
			c.HandlerPolicy, PolicyFirstValid, PolicyAllValid))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout))
	}

	if c.HashAlgorithm != "pbkdf2" && c.HashAlgorithm != "bcrypt" {
		errs = append(errs, fmt.Errorf("invalid HASH_ALGORITHM value: %q (must be \"pbkdf2\" or \"bcrypt\")", c.HashAlgorithm))
	}

	if c.HasStore(StoreMemory) && len(c.MemoryCallers) == 0 {
		errs = append(errs, errors.New("MEMORY_CALLERS is required for the memory store"))
	}

	if c.HasStore(StoreDatabase) && c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required for the database store"))
	}

	if c.HasStore(StoreLDAP) {
		if c.LDAPURL == "" {
			errs = append(errs, errors.New("LDAP_URL is required for the ldap store"))
		}
		if c.LDAPCallerBaseDN == "" && c.LDAPCallerSearchBase == "" {
			errs = append(errs, errors.New("LDAP_CALLER_BASE_DN or LDAP_CALLER_SEARCH_BASE is required for the ldap store"))
		}
	}

	if c.HasStore(StoreHTTPAPI) {
		if c.HTTPAPIURL == "" {
			errs = append(errs, errors.New("HTTP_API_URL is required for the http_api store"))
		}
		switch c.HTTPAPIAuthMode {
		case "none":
		case "simple", "hmac":
			if c.HTTPAPIAuthSecret == "" {
				errs = append(errs, fmt.Errorf("HTTP_API_AUTH_SECRET is required for HTTP_API_AUTH_MODE=%s", c.HTTPAPIAuthMode))
			}
		default:
			errs = append(errs, fmt.Errorf("invalid HTTP_API_AUTH_MODE value: %q (must be none, simple or hmac)", c.HTTPAPIAuthMode))
		}
	}

	if c.AuthMechanism != MechanismForm && c.AuthMechanism != MechanismBasic {
		errs = append(errs, fmt.Errorf("invalid AUTH_MECHANISM value: %q (must be %q or %q)",
			c.AuthMechanism, MechanismForm, MechanismBasic))
	}

	if c.RememberMeEnabled && c.RememberMeMaxAge <= 0 {
		errs = append(errs, fmt.Errorf("REMEMBER_ME_MAX_AGE must be positive, got %d", c.RememberMeMaxAge))
	}

	if c.CacheType != CacheTypeMemory && c.CacheType != CacheTypeRedis {
		errs = append(errs, fmt.Errorf("invalid CACHE_TYPE value: %q (must be %q or %q)",
			c.CacheType, CacheTypeMemory, CacheTypeRedis))
	}
	if (c.CacheType == CacheTypeRedis || c.RateLimitStore == CacheTypeRedis) && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when CACHE_TYPE or RATE_LIMIT_STORE is redis"))
	}
	if c.RateLimitStore != CacheTypeMemory && c.RateLimitStore != CacheTypeRedis {
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, CacheTypeMemory, CacheTypeRedis))
	}
	if c.LoginRateLimit < 0 {
		errs = append(errs, fmt.Errorf("LOGIN_RATE_LIMIT must not be negative, got %d", c.LoginRateLimit))
	}
	if c.GroupCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("GROUP_CACHE_TTL must not be negative, got %s", c.GroupCacheTTL))
	}

	return errors.Join(errs...)
}

// HasStore reports whether IDENTITY_STORES enables kind.
func (c *Config) HasStore(kind string) bool {
	return slices.Contains(c.IdentityStores, kind)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
