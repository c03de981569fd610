package authn

import (
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/go-authgate/idgate/internal/access"
	"github.com/go-authgate/idgate/internal/metrics"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Keys set on the gin context for an authenticated caller.
const (
	ContextCaller = "caller"
	ContextGroups = "caller_groups"
)

// allMethods is checked when HasAccessToWebResource gets no methods.
var allMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// SecurityContext is the application's view of the authenticated caller.
type SecurityContext struct {
	mechanism Mechanism
	handler   Validator
	access    *access.Enforcer
	metrics   metrics.Recorder
}

// Option configures a SecurityContext.
type Option func(*SecurityContext)

// WithAccess sets the enforcer behind HasAccessToWebResource.
func WithAccess(e *access.Enforcer) Option {
	return func(sc *SecurityContext) {
		sc.access = e
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(sc *SecurityContext) {
		if r != nil {
			sc.metrics = r
		}
	}
}

func NewSecurityContext(m Mechanism, h Validator, opts ...Option) *SecurityContext {
	sc := &SecurityContext{
		mechanism: m,
		handler:   h,
		metrics:   metrics.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Authenticate triggers authentication from application code, for example a
// login handler that already holds a credential.
func (sc *SecurityContext) Authenticate(c *gin.Context, params Parameters) (Status, error) {
	if params.NewAuthentication {
		sc.clearCaller(c)
		if err := DialogFor(c).Save(); err != nil {
			return NotDone, err
		}
	}

	msg := NewMessage(c, sc.handler, params)
	msg.AuthenticationRequest = true
	return sc.run(c, msg)
}

// run invokes the mechanism and establishes the caller on Success.
func (sc *SecurityContext) run(c *gin.Context, msg *Message) (Status, error) {
	if sc.mechanism == nil {
		return NotDone, ErrNoMechanism
	}

	start := time.Now()
	status, err := sc.mechanism.ValidateRequest(c, msg)
	if err != nil {
		sc.metrics.RecordAuthentication(sc.mechanism.Name(), "error", time.Since(start))
		log.Printf("[Authn] Mechanism %s failed: %v", sc.mechanism.Name(), err)
		return NotDone, err
	}
	sc.metrics.RecordAuthentication(sc.mechanism.Name(), status.String(), time.Since(start))

	if status != Success {
		return status, nil
	}

	// a mechanism reporting Success without a result has nothing to establish
	result := msg.Result()
	if result == nil {
		return status, nil
	}

	dialog := DialogFor(c)
	dialog.SetCaller(result.CallerName(), result.Groups())
	if err := dialog.Save(); err != nil {
		return NotDone, err
	}
	c.Set(ContextCaller, result.CallerName())
	c.Set(ContextGroups, result.Groups())
	log.Printf("[Authn] Caller authenticated caller=%s store=%s mechanism=%s",
		result.CallerName(), result.StoreID(), sc.mechanism.Name())

	if msg.afterLoginURL != "" {
		c.Redirect(http.StatusFound, msg.afterLoginURL)
		c.Abort()
	}
	return status, nil
}

// restore copies a caller established in the session onto the gin context.
func (sc *SecurityContext) restore(c *gin.Context) bool {
	name, groups, ok := DialogFor(c).Caller()
	if !ok {
		return false
	}
	c.Set(ContextCaller, name)
	c.Set(ContextGroups, groups)
	return true
}

// forgetCaller drops the session caller ahead of a request that brings its own
// credential. The dialog in progress is kept.
func (sc *SecurityContext) forgetCaller(c *gin.Context) error {
	delete(c.Keys, ContextCaller)
	delete(c.Keys, ContextGroups)

	dialog := DialogFor(c)
	if !dialog.hasCaller() {
		return nil
	}
	dialog.ClearCaller()
	return dialog.Save()
}

func (sc *SecurityContext) clearCaller(c *gin.Context) {
	DialogFor(c).Reset()
	delete(c.Keys, ContextCaller)
	delete(c.Keys, ContextGroups)
}

// CallerPrincipal returns the authenticated caller name.
func (sc *SecurityContext) CallerPrincipal(c *gin.Context) (string, bool) {
	if name := c.GetString(ContextCaller); name != "" {
		return name, true
	}
	name, _, ok := storedCaller(c)
	return name, ok
}

// CallerGroups returns the groups of the authenticated caller; never nil.
func (sc *SecurityContext) CallerGroups(c *gin.Context) []string {
	if v, ok := c.Get(ContextGroups); ok {
		if groups, ok := v.([]string); ok && groups != nil {
			return slices.Clone(groups)
		}
	}
	if _, groups, ok := storedCaller(c); ok {
		return groups
	}
	return []string{}
}

// storedCaller reads the session, if the request has one.
func storedCaller(c *gin.Context) (string, []string, bool) {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return "", nil, false
	}
	return DialogFor(c).Caller()
}

func (sc *SecurityContext) IsCallerInRole(c *gin.Context, role string) bool {
	return slices.Contains(sc.CallerGroups(c), role)
}

// HasAccessToWebResource reports whether the caller may use at least one of
// methods on resource. With no methods given, every common method must be allowed.
func (sc *SecurityContext) HasAccessToWebResource(c *gin.Context, resource string, methods ...string) (bool, error) {
	if sc.access == nil {
		return true, nil
	}

	name, _ := sc.CallerPrincipal(c)
	groups := sc.CallerGroups(c)

	if len(methods) == 0 {
		for _, method := range allMethods {
			ok, err := sc.access.Allowed(name, groups, resource, method)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}

	for _, method := range methods {
		ok, err := sc.access.Allowed(name, groups, resource, method)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Logout drops the caller, the dialog and any mechanism state.
func (sc *SecurityContext) Logout(c *gin.Context) error {
	if cl, ok := sc.mechanism.(Cleaner); ok {
		if err := cl.CleanSubject(c, NewMessage(c, sc.handler, Parameters{})); err != nil {
			return err
		}
	}
	sc.clearCaller(c)
	return DialogFor(c).Save()
}
