// Package coreerr implements the error taxonomy of the attention and
// salience core (spec §7): a small set of typed kinds, wrapped with the
// component and owner id that produced them, collapsing to the five
// consumer-surface return kinds at the boundary.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind classifies a core error for retry/propagation decisions.
type Kind string

const (
	// Transient indicates a dependency (store, provider) was unavailable;
	// the caller may retry.
	Transient Kind = "transient"
	// Policy indicates a policy violation (Vault leaving the core,
	// cross-owner access); fatal, no partial effect.
	Policy Kind = "policy"
	// Degraded indicates a successful call that fell back to a degraded
	// path (heuristic extractor, skipped gate stage).
	Degraded Kind = "degraded"
	// Invalid indicates malformed input; never silently normalized.
	Invalid Kind = "invalid"
	// Conflict indicates a concurrent update lost its compare-and-swap.
	Conflict Kind = "conflict"
)

// Error wraps a cause with its kind, owning component, and owner id.
type Error struct {
	Kind      Kind
	Component string
	OwnerID   string
	Field     string // set for Invalid errors naming the offending field
	Cause     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (owner=%s field=%s): %v", e.Component, e.Kind, e.OwnerID, e.Field, e.Cause)
	}
	return fmt.Sprintf("[%s] %s (owner=%s): %v", e.Component, e.Kind, e.OwnerID, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a component/owner-scoped error of the given kind.
func New(kind Kind, component, ownerID string, cause error) *Error {
	return &Error{Kind: kind, Component: component, OwnerID: ownerID, Cause: cause}
}

// Invalidf builds an Invalid error naming the offending field.
func Invalidf(component, ownerID, field, format string, args ...any) *Error {
	return &Error{
		Kind:      Invalid,
		Component: component,
		OwnerID:   ownerID,
		Field:     field,
		Cause:     fmt.Errorf(format, args...),
	}
}

// KindOf extracts the Kind of err if it (transitively) wraps a *Error,
// returning ("", false) otherwise.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// ConsumerResult is the small set of return kinds the consumer surface
// collapses component errors into (spec §7).
type ConsumerResult string

const (
	ResultOK          ConsumerResult = "ok"
	ResultDegraded    ConsumerResult = "degraded"
	ResultInvalid     ConsumerResult = "invalid"
	ResultUnavailable ConsumerResult = "unavailable"
	ResultDenied      ConsumerResult = "denied"
)

// Collapse maps a component error (or nil) to a consumer-facing result.
// Full detail stays in logs; the consumer only sees this coarse kind.
func Collapse(err error) ConsumerResult {
	if err == nil {
		return ResultOK
	}
	kind, ok := KindOf(err)
	if !ok {
		return ResultUnavailable
	}
	switch kind {
	case Transient:
		return ResultUnavailable
	case Policy:
		return ResultDenied
	case Degraded:
		return ResultDegraded
	case Invalid:
		return ResultInvalid
	case Conflict:
		return ResultUnavailable
	default:
		return ResultUnavailable
	}
}

// RetryConflict retries fn up to maxAttempts times while it returns a
// Conflict-kind error (spec §7: "retried up to 3 times, then surfaced as
// transient").
func RetryConflict(maxAttempts int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		kind, ok := KindOf(err)
		if !ok || kind != Conflict {
			return err
		}
	}
	if ce, ok := lastErr.(*Error); ok {
		return &Error{Kind: Transient, Component: ce.Component, OwnerID: ce.OwnerID, Cause: lastErr}
	}
	return lastErr
}
