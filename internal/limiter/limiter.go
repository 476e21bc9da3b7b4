package limiter

import (
	"fmt"

	"api/internal/configuration"
)

// Store is the counter backend. cache.ICache satisfies it.
type Store interface {
	IncrementAttempts(key string, windowSeconds int) (int64, int, error)
}

// Decision is the outcome of spending one verification attempt.
type Decision struct {
	Allowed           bool
	Attempts          int64
	RetryAfterSeconds int
}

// AttemptLimiter bounds two-factor verification attempts per client and
// subject. Attempts are spent before verification runs, and a successful
// verification does not refund or reset the window.
type AttemptLimiter struct {
	store         Store
	maxAttempts   int64
	windowSeconds int
}

func NewAttemptLimiter(store Store) *AttemptLimiter {
	return &AttemptLimiter{
		store:         store,
		maxAttempts:   configuration.TwoFactorMaxAttempts,
		windowSeconds: configuration.TwoFactorAttemptWindowSeconds,
	}
}

// Allow consumes one attempt for the client/subject pair and reports whether
// verification may proceed. RetryAfterSeconds is only set on denial.
func (l *AttemptLimiter) Allow(clientIP string, subjectID string) (Decision, error) {
	key := fmt.Sprintf(configuration.CacheTwoFactorAttemptsKey, clientIP, subjectID)

	count, retryAfter, err := l.store.IncrementAttempts(key, l.windowSeconds)
	if err != nil {
		return Decision{}, err
	}

	if count > l.maxAttempts {
		return Decision{Allowed: false, Attempts: count, RetryAfterSeconds: retryAfter}, nil
	}

	return Decision{Allowed: true, Attempts: count}, nil
}
