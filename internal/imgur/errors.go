package imgur

import "fmt"

// APIError is returned for every failed provider call: a failure flag in the
// response envelope, a non-2xx status, or a transport failure (including
// timeouts). Callers cannot distinguish a timeout from a network failure at
// this layer; the recovery action is the same either way.
type APIError struct {
	// Op is the operation that failed: "upload", "get" or "delete".
	Op string
	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int
	// Message is the provider-supplied error message when available.
	// Not assumed safe to show verbatim to end users.
	Message string

	cause error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("imgur %s: %v", e.Op, e.cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("imgur %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("imgur %s: status %d", e.Op, e.StatusCode)
}

// Unwrap exposes the transport cause, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}
