package orchestrator

import (
	"fmt"
	"time"
)

// ErrorKind classifies the caller-visible reason a completion request
// failed, mirroring the error taxonomy of the orchestration service this
// system is modeled on.
type ErrorKind int

const (
	ErrorKindValidation ErrorKind = iota
	ErrorKindAuthentication
	ErrorKindRateLimited
	ErrorKindProviderError
	ErrorKindNetwork
	ErrorKindCircuitOpen
	ErrorKindSecurityViolation
	ErrorKindAllProvidersFailed
)

// String returns the human-readable name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindValidation:
		return "validation"
	case ErrorKindAuthentication:
		return "authentication"
	case ErrorKindRateLimited:
		return "rate_limited"
	case ErrorKindProviderError:
		return "provider_error"
	case ErrorKindNetwork:
		return "network"
	case ErrorKindCircuitOpen:
		return "circuit_open"
	case ErrorKindSecurityViolation:
		return "security_violation"
	case ErrorKindAllProvidersFailed:
		return "all_providers_failed"
	default:
		return "unknown"
	}
}

// OrchestratorError is the single error type CompleteWithFallback (and so
// each BatchComplete result) surfaces to callers: the error kind, a
// sanitized human message, every provider name attempted, and how long
// the whole attempt took. StreamCompletion does not use it; it returns
// plain errors. It satisfies the standard error interface and
// supports errors.Is/errors.As the way breaker.ErrCircuitOpen/ErrAllFailed
// do in this codebase's resilience layer.
type OrchestratorError struct {
	Kind               ErrorKind
	Message            string
	ProvidersAttempted []string
	Elapsed            time.Duration

	// Wrapped is the underlying error, if any, exposed through Unwrap so
	// errors.Is still finds sentinel errors like ErrNoProvidersAvailable.
	Wrapped error
}

func (e *OrchestratorError) Error() string {
	return fmt.Sprintf("orchestrator: %s: %s (providers=%v, elapsed=%s)", e.Kind, e.Message, e.ProvidersAttempted, e.Elapsed)
}

func (e *OrchestratorError) Unwrap() error { return e.Wrapped }

// Is reports whether target is an *OrchestratorError with the same Kind,
// so callers can test errors.Is(err, &OrchestratorError{Kind: ErrorKindCircuitOpen})
// without needing to match the message or provider list.
func (e *OrchestratorError) Is(target error) bool {
	other, ok := target.(*OrchestratorError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
