package apierrors

import "fmt"

// APIError is an error with a stable machine-checkable code and the HTTP
// status it maps to. Handlers unwrap it to build the response body; anything
// else becomes a 500.
type APIError struct {
	Status     int
	Code       string
	RetryAfter int // seconds, set only on rate-limit errors
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Code)
}

func NewAPIError(status int, code string) *APIError {
	return &APIError{Status: status, Code: code}
}

// NewRateLimitedError carries the seconds remaining in the current window so
// the transport can emit a Retry-After header alongside the body.
func NewRateLimitedError(retryAfterSeconds int) *APIError {
	return &APIError{Status: 429, Code: ErrRateLimited, RetryAfter: retryAfterSeconds}
}
