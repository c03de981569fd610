package identitystore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/go-authgate/idgate/internal/credential"
	"github.com/go-authgate/idgate/internal/metrics"
)

// DefaultStoreTimeout bounds a single store consultation.
const DefaultStoreTimeout = 5 * time.Second

// Policy selects how VALIDATE results are combined.
type Policy int

const (
	// PolicyFirstValid takes the first VALID result in priority order.
	PolicyFirstValid Policy = iota
	// PolicyAllValid requires every store that handled the credential to
	// accept it for the same caller.
	PolicyAllValid
)

// ParsePolicy accepts "first_valid" and "all_valid".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "first_valid", "":
		return PolicyFirstValid, nil
	case "all_valid":
		return PolicyAllValid, nil
	default:
		return 0, fmt.Errorf("unknown aggregation policy: %q", s)
	}
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithStoreTimeout sets the per-store deadline. Non-positive values are ignored.
func WithStoreTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithPolicy sets the aggregation policy.
func WithPolicy(p Policy) HandlerOption {
	return func(h *Handler) {
		h.policy = p
	}
}

// WithGrant sets the capability passed to CallerGroups.
func WithGrant(g Grant) HandlerOption {
	return func(h *Handler) {
		h.grant = g
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) HandlerOption {
	return func(h *Handler) {
		if r != nil {
			h.metrics = r
		}
	}
}

// Handler aggregates the results of a priority-ordered set of stores.
// The store list is fixed at construction; Handler is safe for concurrent use.
type Handler struct {
	stores  []Store
	timeout time.Duration
	policy  Policy
	grant   Grant
	metrics metrics.Recorder
}

// NewHandler orders stores by ascending priority, keeping registration order for ties.
// By default the handler holds PermissionGetGroups.
func NewHandler(stores []Store, opts ...HandlerOption) *Handler {
	ordered := make([]Store, len(stores))
	copy(ordered, stores)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Settings().Priority < ordered[j].Settings().Priority
	})

	h := &Handler{
		stores:  ordered,
		timeout: DefaultStoreTimeout,
		policy:  PolicyFirstValid,
		grant:   NewGrant(PermissionGetGroups),
		metrics: metrics.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stores returns the stores in consultation order.
func (h *Handler) Stores() []Store {
	out := make([]Store, len(h.stores))
	copy(out, h.stores)
	return out
}

// Validate runs cred through every VALIDATE store, then merges groups from every
// PROVIDE_GROUPS store into the winning result. Groups carried by the winning
// result are kept only when its store also declares PROVIDE_GROUPS. A store fault aborts with an error
// wrapping ErrStoreFailure.
func (h *Handler) Validate(ctx context.Context, cred credential.Credential) (*Result, error) {
	winner, from, err := h.validate(ctx, cred)
	if err != nil {
		return nil, err
	}
	if winner.Status() != Valid {
		return winner, nil
	}

	// a VALIDATE-only store establishes the caller but contributes no groups
	if !from.Settings().ValidationTypes.Has(ProvideGroups) {
		winner = winner.withoutGroups()
	}

	var groups []string
	for _, s := range h.stores {
		settings := s.Settings()
		if !settings.ValidationTypes.Has(ProvideGroups) {
			continue
		}

		found, err := h.callerGroups(ctx, s, winner)
		if err != nil {
			h.metrics.RecordStoreError(settings.ID, "groups")
			log.Printf("[IdentityStore] Group lookup failed store=%s caller=%s: %v",
				settings.ID, winner.CallerName(), err)
			return nil, fmt.Errorf("%w: %s: %w", ErrStoreFailure, settings.ID, err)
		}
		groups = append(groups, found...)
	}

	return winner.withGroups(groups), nil
}

// validate returns the aggregated result and, when it is VALID, the store it came from.
func (h *Handler) validate(ctx context.Context, cred credential.Credential) (*Result, Store, error) {
	var (
		winner     *Result
		from       Store
		sawInvalid bool
	)

	for _, s := range h.stores {
		settings := s.Settings()
		if !settings.ValidationTypes.Has(Validate) {
			continue
		}

		start := time.Now()
		result, err := h.validateOne(ctx, s, cred)
		if err != nil {
			h.metrics.RecordStoreError(settings.ID, "validate")
			log.Printf("[IdentityStore] Validation failed store=%s: %v", settings.ID, err)
			return nil, nil, fmt.Errorf("%w: %s: %w", ErrStoreFailure, settings.ID, err)
		}
		h.metrics.RecordStoreValidation(settings.ID, result.Status().String(), time.Since(start))

		switch result.Status() {
		case Valid:
			if h.policy == PolicyFirstValid {
				return result, s, nil
			}
			if winner == nil {
				winner, from = result, s
			} else if winner.CallerName() != result.CallerName() {
				log.Printf("[IdentityStore] Caller mismatch store=%s: %s != %s",
					settings.ID, result.CallerName(), winner.CallerName())
				return InvalidResult, nil, nil
			}
		case Invalid:
			if h.policy == PolicyAllValid {
				return InvalidResult, nil, nil
			}
			sawInvalid = true
		}
	}

	if winner != nil {
		return winner, from, nil
	}
	if sawInvalid {
		return InvalidResult, nil, nil
	}
	return NotValidatedResult, nil, nil
}

func (h *Handler) validateOne(
	ctx context.Context,
	s Store,
	cred credential.Credential,
) (*Result, error) {
	result, err := withinDeadline(ctx, h.timeout, func(ctx context.Context) (*Result, error) {
		return s.Validate(ctx, cred)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return NotValidatedResult, nil
	}
	return result, nil
}

func (h *Handler) callerGroups(ctx context.Context, s Store, winner *Result) ([]string, error) {
	start := time.Now()
	groups, err := withinDeadline(ctx, h.timeout, func(ctx context.Context) ([]string, error) {
		return s.CallerGroups(ctx, h.grant, winner)
	})
	if err != nil {
		return nil, err
	}
	h.metrics.RecordGroupLookup(s.Settings().ID, len(groups), time.Since(start))
	return groups, nil
}

// withinDeadline runs fn with a timeout and stops waiting once it expires, so a
// store that ignores its context still counts as timed out. An answer that
// arrives after the deadline is discarded.
func withinDeadline[T any](
	parent context.Context,
	timeout time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn(ctx)
		done <- outcome{value, err}
	}()

	var zero T
	select {
	case o := <-done:
		if o.err != nil {
			return zero, timeoutError(ctx, o.err)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: answered after %s", ErrStoreTimeout, timeout)
		}
		return o.value, nil
	case <-ctx.Done():
		return zero, timeoutError(ctx, ctx.Err())
	}
}

// timeoutError reports an exceeded store deadline as ErrStoreTimeout.
func timeoutError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStoreTimeout, err)
	}
	return err
}
