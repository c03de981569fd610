package identitystore

import (
	"fmt"
	"slices"
	"strings"
)

// Status is the outcome of one credential validation attempt.
type Status int

const (
	// NotValidated means the store did not handle the credential.
	NotValidated Status = iota
	// Invalid means the credential was checked and rejected.
	Invalid
	// Valid means the credential was accepted and a caller identity is available.
	Valid
)

func (s Status) String() string {
	switch s {
	case NotValidated:
		return "NOT_VALIDATED"
	case Invalid:
		return "INVALID"
	case Valid:
		return "VALID"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// CallerPrincipal is the established name of an authenticated caller.
type CallerPrincipal struct {
	name string
}

// NewCallerPrincipal returns ErrEmptyPrincipal for a blank name.
func NewCallerPrincipal(name string) (CallerPrincipal, error) {
	if strings.TrimSpace(name) == "" {
		return CallerPrincipal{}, ErrEmptyPrincipal
	}
	return CallerPrincipal{name: name}, nil
}

func (p CallerPrincipal) Name() string   { return p.name }
func (p CallerPrincipal) String() string { return p.name }

// Identity carries the fields a store contributes on a VALID result.
// Only CallerName is required.
type Identity struct {
	StoreID        string
	CallerName     string
	CallerDN       string
	CallerUniqueID string
	Groups         []string
}

// Result is the immutable outcome of a validation. Identity accessors return
// zero values unless Status is Valid.
type Result struct {
	status         Status
	storeID        string
	principal      CallerPrincipal
	callerDN       string
	callerUniqueID string
	groups         []string
}

var (
	InvalidResult      = &Result{status: Invalid}
	NotValidatedResult = &Result{status: NotValidated}
)

// NewResult builds a result, rejecting identity fields on a non-VALID status and
// a missing or blank principal on a VALID one.
func NewResult(status Status, id *Identity) (*Result, error) {
	if status != Valid {
		if id != nil {
			return nil, fmt.Errorf("%w: status %s", ErrBadStatus, status)
		}
		return &Result{status: status}, nil
	}

	if id == nil {
		return nil, ErrEmptyPrincipal
	}

	principal, err := NewCallerPrincipal(id.CallerName)
	if err != nil {
		return nil, err
	}

	return &Result{
		status:         Valid,
		storeID:        id.StoreID,
		principal:      principal,
		callerDN:       id.CallerDN,
		callerUniqueID: id.CallerUniqueID,
		groups:         normalizeGroups(id.Groups),
	}, nil
}

// NewValidResult is shorthand for NewResult(Valid, &id).
func NewValidResult(id Identity) (*Result, error) {
	return NewResult(Valid, &id)
}

// MustValidResult is like NewValidResult but panics on a malformed identity.
func MustValidResult(id Identity) *Result {
	r, err := NewValidResult(id)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Result) Status() Status                   { return r.status }
func (r *Result) StoreID() string                  { return r.storeID }
func (r *Result) CallerPrincipal() CallerPrincipal { return r.principal }
func (r *Result) CallerDN() string                 { return r.callerDN }
func (r *Result) CallerUniqueID() string           { return r.callerUniqueID }

// CallerName is shorthand for CallerPrincipal().Name().
func (r *Result) CallerName() string {
	return r.principal.name
}

// Groups returns a sorted copy of the caller's groups; never nil.
func (r *Result) Groups() []string {
	out := make([]string, len(r.groups))
	copy(out, r.groups)
	return out
}

// withoutGroups returns a copy of a VALID result with its groups dropped.
func (r *Result) withoutGroups() *Result {
	out := *r
	out.groups = []string{}
	return &out
}

// withGroups returns a copy of a VALID result with extra groups merged in.
func (r *Result) withGroups(extra []string) *Result {
	merged := make([]string, 0, len(r.groups)+len(extra))
	merged = append(merged, r.groups...)
	merged = append(merged, extra...)

	out := *r
	out.groups = normalizeGroups(merged)
	return &out
}

func (r *Result) String() string {
	if r.status != Valid {
		return r.status.String()
	}
	return fmt.Sprintf("%s(%s groups=%v)", r.status, r.principal.name, r.groups)
}

func normalizeGroups(groups []string) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if g != "" {
			out = append(out, g)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
