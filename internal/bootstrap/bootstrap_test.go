package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-authgate/idgate/internal/cache"
	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/metrics"
	"github.com/go-authgate/idgate/internal/rememberme"
	"github.com/go-authgate/idgate/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:              ":0",
		ServerShutdownTimeout:   time.Second,
		SessionSecret:           "test-secret",
		SessionName:             "test_session",
		SessionMaxAge:           3600,
		IdentityStores:          []string{config.StoreDatabase},
		StoreTimeout:            time.Second,
		HandlerPolicy:           config.PolicyFirstValid,
		DatabaseDriver:          "sqlite",
		DatabaseDSN:             ":memory:",
		DatabasePriority:        70,
		DatabaseValidationTypes: "validate,provide_groups",
		HashAlgorithm:           "pbkdf2",
		HashParameters:          []string{"Pbkdf2PasswordHash.Iterations=1024"},
		AuthMechanism:           config.MechanismForm,
		LoginPage:               "/login",
		ErrorPage:               "/login-error",
		UseForwardToLogin:       true,
		RememberMeCookieName:    "JREMEMBERMEID",
		RememberMeMaxAge:        86400,
		RememberMeHTTPOnly:      true,
		CacheType:               config.CacheTypeMemory,
		RateLimitStore:          config.CacheTypeMemory,
	}
}

// newTestApp seeds alice/s3cret in admins and returns the router.
func newTestApp(t *testing.T, cfg *config.Config) (*gin.Engine, *store.Store) {
	t.Helper()
	require.NoError(t, cfg.Validate())
	require.NoError(t, validateStoreSettings(cfg))

	db, err := initializeDatabase(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hash, err := NewPasswordHash(cfg)
	require.NoError(t, err)
	encoded, err := hash.Generate([]byte("s3cret"))
	require.NoError(t, err)
	_, err = db.CreateCaller(context.Background(), "alice", encoded, []string{"admins"})
	require.NoError(t, err)

	tokenCache, groupCache, err := initializeCaches(context.Background(), cfg)
	require.NoError(t, err)

	m := metrics.NewNoopMetrics()
	h, err := NewIdentityHandler(cfg, db, groupCache, m)
	require.NoError(t, err)

	var tokens *rememberme.Store
	if cfg.RememberMeEnabled {
		tokens = rememberme.New(tokenCache, rememberMeTTL(cfg), m)
	}
	sc, err := newSecurityContext(cfg, h, tokens, m)
	require.NoError(t, err)

	limiter, _, err := initializeLoginRateLimiter(context.Background(), cfg)
	require.NoError(t, err)

	return setupRouter(cfg, db, sc, m, limiter), db
}

type browser struct {
	r       http.Handler
	cookies map[string]*http.Cookie
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	b.r.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		b.cookies[ck.Name] = ck
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) login(name, password string, extra url.Values) *httptest.ResponseRecorder {
	form := url.Values{"j_username": {name}, "j_password": {password}}
	for k, v := range extra {
		form[k] = v
	}
	req := httptest.NewRequest(http.MethodPost, "/j_security_check", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func TestServer_FormLoginFlow(t *testing.T) {
	r, _ := newTestApp(t, testConfig())
	b := &browser{r: r, cookies: map[string]*http.Cookie{}}

	// forwarded to the login form in place of /me
	w := b.get("/me")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="j_username"`)
	assert.NotContains(t, w.Body.String(), "j_remember_me")

	w = b.login("alice", "wrong", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login-error", w.Header().Get("Location"))

	w = b.get("/login-error")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password")

	w = b.login("alice", "s3cret", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/me", w.Header().Get("Location"))

	w = b.get("/me")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"caller":"alice","groups":["admins"]}`, w.Body.String())

	w = b.get("/logout")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = b.get("/me")
	assert.Contains(t, w.Body.String(), `name="j_username"`)
}

func TestServer_BasicMechanism(t *testing.T) {
	cfg := testConfig()
	cfg.AuthMechanism = config.MechanismBasic
	cfg.BasicRealm = "idgate-test"
	r, _ := newTestApp(t, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Basic realm="idgate-test"`, w.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.SetBasicAuth("alice", "s3cret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alice"`)
}

func TestServer_AccessPolicies(t *testing.T) {
	cfg := testConfig()
	cfg.AuthMechanism = config.MechanismBasic
	cfg.AccessPolicies = []string{"auditors,/me,*"}
	r, _ := newTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.SetBasicAuth("alice", "s3cret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "access_denied")
}

func TestServer_RememberMe(t *testing.T) {
	cfg := testConfig()
	cfg.RememberMeEnabled = true
	cfg.GroupCacheTTL = time.Minute
	r, _ := newTestApp(t, cfg)

	b := &browser{r: r, cookies: map[string]*http.Cookie{}}
	w := b.get("/login")
	assert.Contains(t, w.Body.String(), `name="j_remember_me"`)

	w = b.login("alice", "s3cret", url.Values{"j_remember_me": {"on"}})
	require.Equal(t, http.StatusFound, w.Code)
	token, ok := b.cookies["JREMEMBERMEID"]
	require.True(t, ok)

	// a new browser holding only the token
	other := &browser{r: r, cookies: map[string]*http.Cookie{token.Name: token}}
	w = other.get("/me")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"caller":"alice","groups":["admins"]}`, w.Body.String())
}

func TestServer_Health(t *testing.T) {
	r, db := newTestApp(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "connected")

	require.NoError(t, db.Close())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInitializeMetrics(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		m := initializeMetrics(&config.Config{MetricsEnabled: enabled})
		require.NotNil(t, m)
	}
}

func TestInitializeCaches_Memory(t *testing.T) {
	cfg := testConfig()

	tokens, groups, err := initializeCaches(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache[rememberme.Entry]{}, tokens)
	assert.Nil(t, groups)

	cfg.GroupCacheTTL = time.Minute
	_, groups, err = initializeCaches(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache[[]string]{}, groups)
}

func TestValidateStoreSettings(t *testing.T) {
	cfg := testConfig()
	assert.NoError(t, validateStoreSettings(cfg))

	cfg.LDAPValidationTypes = "validate,everything"
	err := validateStoreSettings(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LDAP_VALIDATION_TYPES")

	cfg.LDAPValidationTypes = ""
	cfg.MemoryCallers = []string{"alice"}
	err = validateStoreSettings(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEMORY_CALLERS")
}

func TestServer_MemoryStore(t *testing.T) {
	cfg := testConfig()
	hash, err := NewPasswordHash(cfg)
	require.NoError(t, err)
	encoded, err := hash.Generate([]byte("hunter2"))
	require.NoError(t, err)

	cfg.IdentityStores = []string{config.StoreMemory, config.StoreDatabase}
	cfg.MemoryCallers = []string{"bob:" + encoded + ":operators|users"}
	cfg.MemoryPriority = 100
	cfg.MemoryValidationTypes = "validate,provide_groups"
	r, _ := newTestApp(t, cfg)

	b := &browser{r: r, cookies: map[string]*http.Cookie{}}
	b.get("/me")
	w := b.login("bob", "hunter2", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/me", w.Header().Get("Location"))

	w = b.get("/me")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"caller":"bob","groups":["operators","users"]}`, w.Body.String())

	b = &browser{r: r, cookies: map[string]*http.Cookie{}}
	w = b.login("bob", "wrong", nil)
	assert.Equal(t, "/login-error", w.Header().Get("Location"))
}

func TestNewPasswordHash(t *testing.T) {
	cfg := testConfig()
	_, err := NewPasswordHash(cfg)
	assert.NoError(t, err)

	cfg.HashParameters = []string{"Pbkdf2PasswordHash.Iterations"}
	_, err = NewPasswordHash(cfg)
	assert.Error(t, err)

	cfg.HashParameters = nil
	cfg.HashAlgorithm = "md5"
	_, err = NewPasswordHash(cfg)
	assert.Error(t, err)
}

func TestNewIdentityHandler_DatabaseWithoutDB(t *testing.T) {
	_, err := NewIdentityHandler(testConfig(), nil, nil, metrics.NewNoopMetrics())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is not initialized")
}

func TestServer_LoginRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRateLimit = 2
	r, _ := newTestApp(t, cfg)

	b := &browser{r: r, cookies: map[string]*http.Cookie{}}
	assert.Equal(t, http.StatusFound, b.login("alice", "wrong", nil).Code)
	assert.Equal(t, http.StatusFound, b.login("alice", "wrong", nil).Code)

	w := b.login("alice", "s3cret", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestServer_MetricsToken(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = true
	cfg.MetricsToken = "scrape-me"
	r, _ := newTestApp(t, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer scrape-me")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
