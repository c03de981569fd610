package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-authgate/idgate/internal/access"
	"github.com/go-authgate/idgate/internal/authn"
	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/identitystore"
	"github.com/go-authgate/idgate/internal/metrics"
	"github.com/go-authgate/idgate/internal/rememberme"
)

// newSecurityContext wires the configured mechanism, optionally wrapped for
// remember-me, and the access policies. tokens is nil when remember-me is off.
func newSecurityContext(
	cfg *config.Config,
	h *identitystore.Handler,
	tokens *rememberme.Store,
	m metrics.Recorder,
) (*authn.SecurityContext, error) {
	mechanism := newMechanism(cfg)

	if tokens != nil {
		rm := authn.NewRememberMeMechanism(mechanism, tokens, authn.CookieConfig{
			Name:     cfg.RememberMeCookieName,
			MaxAge:   cfg.RememberMeMaxAge,
			Path:     "/",
			Secure:   cfg.RememberMeSecure,
			HTTPOnly: cfg.RememberMeHTTPOnly,
		})
		rm.Always = cfg.RememberMeAlways
		mechanism = rm
	}

	opts := []authn.Option{authn.WithRecorder(m)}
	if len(cfg.AccessPolicies) > 0 {
		policies, err := access.ParsePolicies(cfg.AccessPolicies)
		if err != nil {
			return nil, err
		}
		enforcer, err := access.New(policies)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize access policies: %w", err)
		}
		opts = append(opts, authn.WithAccess(enforcer))
		log.Printf("[Authn] Loaded %d access policies", len(policies))
	}

	log.Printf("[Authn] Authentication mechanism: %s", mechanism.Name())
	return authn.NewSecurityContext(mechanism, h, opts...), nil
}

func newMechanism(cfg *config.Config) authn.Mechanism {
	if cfg.AuthMechanism == config.MechanismBasic {
		return &authn.BasicMechanism{Realm: cfg.BasicRealm}
	}
	return authn.NewFormMechanism(authn.LoginToContinue{
		LoginPage:         cfg.LoginPage,
		ErrorPage:         cfg.ErrorPage,
		UseForwardToLogin: cfg.UseForwardToLogin,
		LoginHandler:      loginPage(cfg),
	})
}
