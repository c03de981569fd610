// Package access decides whether a caller may reach a web resource.
package access

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/util"
)

//go:embed model.conf
var modelContent string

var ErrInvalidPolicy = errors.New("access: invalid policy")

// Policy grants Subject (a caller name or group) Method on resources matching
// Resource. Resource may end in "*"; Method "*" allows every method.
type Policy struct {
	Subject  string
	Resource string
	Method   string
}

func (p Policy) String() string {
	return p.Subject + "," + p.Resource + "," + p.Method
}

// ParsePolicy parses "subject,resource,method".
func ParsePolicy(s string) (Policy, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Policy{}, fmt.Errorf("%w: %q: want subject,resource,method", ErrInvalidPolicy, s)
	}
	p := Policy{
		Subject:  strings.TrimSpace(parts[0]),
		Resource: strings.TrimSpace(parts[1]),
		Method:   strings.ToUpper(strings.TrimSpace(parts[2])),
	}
	if p.Subject == "" || p.Method == "" || !strings.HasPrefix(p.Resource, "/") {
		return Policy{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
	return p, nil
}

// ParsePolicies parses each entry with ParsePolicy, skipping blank ones.
func ParsePolicies(entries []string) ([]Policy, error) {
	var out []Policy
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		p, err := ParsePolicy(e)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Enforcer evaluates policies with casbin. Resources no policy mentions are open.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
	policies []Policy
}

func New(policies []Policy) (*Enforcer, error) {
	m, err := model.NewModelFromString(modelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	for _, p := range policies {
		if _, err := e.AddPolicy(p.Subject, p.Resource, p.Method); err != nil {
			return nil, fmt.Errorf("add policy %s: %w", p, err)
		}
	}

	return &Enforcer{enforcer: e, policies: append([]Policy(nil), policies...)}, nil
}

// Policies returns a copy of the loaded policies.
func (e *Enforcer) Policies() []Policy {
	return append([]Policy(nil), e.policies...)
}

// Protected reports whether any policy covers resource and method.
func (e *Enforcer) Protected(resource, method string) bool {
	method = strings.ToUpper(method)
	for _, p := range e.policies {
		if (p.Method == "*" || p.Method == method) && util.KeyMatch(resource, p.Resource) {
			return true
		}
	}
	return false
}

// Allowed reports whether the caller or one of its groups may perform method
// on resource. Unprotected resources are allowed for everyone, including
// anonymous callers.
func (e *Enforcer) Allowed(principal string, groups []string, resource, method string) (bool, error) {
	if !e.Protected(resource, method) {
		return true, nil
	}

	method = strings.ToUpper(method)
	subjects := make([]string, 0, len(groups)+1)
	if principal != "" {
		subjects = append(subjects, principal)
	}
	subjects = append(subjects, groups...)

	for _, sub := range subjects {
		ok, err := e.enforcer.Enforce(sub, resource, method)
		if err != nil {
			return false, fmt.Errorf("access: enforce: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
