package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database.
	ErrJobNotFound = errors.New("job not found")

	// ErrConflict is returned when a guarded state transition finds the job
	// already advanced past the expected state. A second payment claim against
	// a paid-or-later job observes this and must not re-dispatch.
	ErrConflict = errors.New("job already advanced past expected state")

	// ErrTxHashUsed is returned when a transaction hash is already recorded
	// on a different job.
	ErrTxHashUsed = errors.New("transaction already used to pay another job")

	// ErrServiceUnknown is returned for a service key missing from the catalog.
	ErrServiceUnknown = errors.New("unknown service key")

	// ErrProviderFailed is a provider-reported generation failure.
	ErrProviderFailed = errors.New("provider error")

	// ErrMalformedOutput marks a provider contract violation: the raw response
	// did not decode as one well-formed object.
	ErrMalformedOutput = errors.New("malformed provider output")

	// ErrProviderTimeout marks a provider call that exceeded its deadline.
	// Distinct from ErrProviderFailed so the failed leg is recorded.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrEndpointNotFound means no webhook endpoint is registered for a fulfiller.
	ErrEndpointNotFound = errors.New("webhook endpoint not registered")

	// ErrDeliveryRejected marks a 4xx webhook response: the endpoint will not
	// accept this payload, so retrying is pointless.
	ErrDeliveryRejected = errors.New("webhook delivery rejected by endpoint")

	// ErrDeliveryExhausted marks a webhook delivery that failed every attempt.
	ErrDeliveryExhausted = errors.New("webhook delivery attempts exhausted")
)

// Payment rejection reasons. All are terminal for the submitted claim; the job
// stays pending and the caller may resubmit a new claim.
const (
	RejectTxNotFound      = "tx_not_found"
	RejectExecutionFailed = "execution_failed"
	RejectWrongContract   = "wrong_contract"
	RejectWrongRecipient  = "wrong_recipient"
	RejectWrongAmount     = "wrong_amount"
)

// VerificationError carries a structured payment rejection back to the caller.
// The reason is one of the Reject* constants; Detail is safe to surface.
type VerificationError struct {
	Reason string
	Detail string
}

func (e *VerificationError) Error() string {
	if e.Detail == "" {
		return "payment rejected: " + e.Reason
	}
	return fmt.Sprintf("payment rejected: %s: %s", e.Reason, e.Detail)
}

// RetryableError wraps transient errors that should trigger a message requeue.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
