package embedclient

import "errors"

// Failure taxonomy for embedding calls, per spec.md's error-handling table.
// ErrRateLimited is reserved for the local token-bucket limiter's own
// deadline being exceeded; a 429 from the provider itself is treated as a
// retryable rate-limit signal and classified as ErrTransient instead.
var (
	ErrTransient         = errors.New("embedclient: transient provider error")
	ErrRejected          = errors.New("embedclient: provider rejected the request")
	ErrTimeout           = errors.New("embedclient: provider call timed out")
	ErrRateLimited       = errors.New("embedclient: rate limiter deadline exceeded")
	ErrDimensionMismatch = errors.New("embedclient: response vector dimension does not match the established dimension")
)
