package cache

type ICache interface {
	RegisterPlatform(id string) error
	DeleteInactivePlatform() error
	StartIdentityTicker(id string)

	GetRateLimit(userIdentifier string, requestsPerMinute int) (int, error)

	// IncrementAttempts bumps the counter behind key and returns the new count
	// together with the seconds left in the current window. The window TTL is
	// armed on the first increment only; later increments never extend it.
	IncrementAttempts(key string, windowSeconds int) (int64, int, error)

	// MarkTOTPCodeUsed records a consumed TOTP code for a subject.
	// Returns false when the code was already consumed inside the replay window.
	// Uses configuration.TOTPCodeTTL for the window.
	MarkTOTPCodeUsed(subjectID string, code string) (bool, error)

	// TryAcquireLock attempts to take a distributed lock via SET NX EX.
	TryAcquireLock(key string, instanceID string, ttlSeconds int) (bool, error)
	// RefreshLock extends the TTL of a lock held by this instance.
	RefreshLock(key string, instanceID string, ttlSeconds int) (bool, error)

	Close() error
}
