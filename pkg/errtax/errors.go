// Package errtax implements the pipeline-wide error taxonomy from :
// a small, closed set of error Kinds that every stage and provider call
// reports through, so the Orchestrator can apply one recovery policy per
// kind instead of pattern-matching error strings.
package errtax

import "fmt"

// Kind is one of the error taxonomy's recognized categories.
type Kind string

const (
	// KindInputValidation — surfaced immediately, not retried, run fails
	// before Expansion.
	KindInputValidation Kind = "input_validation"
	// KindProviderTransient — network, 5xx, 429; retried with backoff by
	// the Batcher; promoted to KindProviderPermanent after max_retries.
	KindProviderTransient Kind = "provider_transient"
	// KindProviderPermanent — auth, schema, forbidden; not retried.
	KindProviderPermanent Kind = "provider_permanent"
	// KindQuotaExceeded — stops further dispatch to a provider for the run;
	// triggers failover if another provider is healthy.
	KindQuotaExceeded Kind = "quota_exceeded"
	// KindBudgetExceeded — run-terminal.
	KindBudgetExceeded Kind = "budget_exceeded"
	// KindQualityGateFailure — emits a warning; aborts only under a strict gate.
	KindQualityGateFailure Kind = "quality_gate_failure"
	// KindTimeout — per-call: retryable; per-stage: terminal for the run.
	KindTimeout Kind = "timeout"
	// KindCancelled — terminal; no retries.
	KindCancelled Kind = "cancelled"
	// KindInternal — programmer errors; run-terminal.
	KindInternal Kind = "internal"
	// KindCircuitOpen — the provider's circuit breaker is open; fails fast.
	KindCircuitOpen Kind = "circuit_open"
)

// Retryable reports whether a batch-level caller (the Batcher) should retry
// an error of this kind. Only transient, per-call conditions are retryable;
// everything else either fails the batch item immediately or is already a
// run-terminal decision made above the Batcher.
func (k Kind) Retryable() bool {
	switch k {
	case KindProviderTransient, KindTimeout:
		return true
	default:
		return false
	}
}

// RunTerminal reports whether an error of this kind, once it escapes stage
// recovery, must fail the whole Run rather than just the batch/job.
func (k Kind) RunTerminal() bool {
	switch k {
	case KindBudgetExceeded, KindCancelled, KindInternal:
		return true
	default:
		return false
	}
}

// Error is the pipeline's structured error type: a Kind, the component that
// raised it, and an underlying cause. Every provider, batcher, and stage
// error returned across a package boundary should be one of these (or wrap
// one), so %w chains stay inspectable with errors.As.
type Error struct {
	Kind      Kind
	Component string // e.g. "provider.metrics", "stage.clustering"
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs a taxonomy Error with no wrapped cause.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap constructs a taxonomy Error wrapping an existing cause.
func Wrap(kind Kind, component, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, else
// returns KindInternal as the conservative default — an un-taxonomized
// error is treated as a programmer error, not silently retried.
func KindOf(err error) Kind {
	var te *Error
	if ok := asError(err, &te); ok {
		return te.Kind
	}
	return KindInternal
}

// asError is a small indirection around errors.As kept local to avoid an
// import cycle concern if callers want to shadow the stdlib errors package
// name; it simply defers to errors.As.
func asError(err error, target **Error) bool {
	for err != nil {
		if te, ok := err.(*Error); ok {
			*target = te
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
