package configuration

const AppName = "loanpilot"

// Bearer audience constants. Login sessions carry the session audience;
// restricted JWTs minted for the password-reset flow carry their own so they
// cannot be replayed against regular API routes.
const (
	AudienceSession  = "app:session"
	AudienceMFAReset = "auth:mfa:password-reset"
)

// RateLimitRequestsPerMinute is the general per-caller throughput cap shared
// across instances. The two-factor verification endpoints carry their own,
// much stricter attempt limit on top of it.
const RateLimitRequestsPerMinute = 120

// RateLimitPublicRequestsPerMinute caps unauthenticated traffic per client IP
// in-process, fronting login and password reset.
const RateLimitPublicRequestsPerMinute = 20

const (
	CacheMaxAppIdentityLifetime = 60
	CacheAppIdentityKey         = "app:identity"
	CacheAppRateLimitKey        = "app:ratelimit:%s"
	CacheAppWorkerLockKey       = "app:worker:lock:%s" //nolint:gosec // not a credential
	CacheAppWorkerLockTTL       = 60
	CacheAppWorkerLockRefresh   = 55
	CacheTwoFactorAttemptsKey   = "2fa:attempts:%s:%s"
	CacheTOTPUsedKey            = "totp:used:%s:%s"
)

// SessionSweepIntervalMinutes is how often the sweeper worker runs. Pending
// sessions live ten minutes, so a shorter cadence buys nothing.
const SessionSweepIntervalMinutes = 15

const EventsNotifications = "notifications"

const (
	SecurityChallengeExpirationMinutes = 5
	SecurityChallengeMaxFailedAttempts = 3
)

const (
	// TOTPCodeTTL is the time-to-live for TOTP code replay protection (in seconds).
	TOTPCodeTTL = 90
	// TwoFactorMaxAttempts is the number of verification attempts allowed per
	// (client IP, subject) key within one window.
	TwoFactorMaxAttempts = 5
	// TwoFactorAttemptWindowSeconds is the rolling window for verification attempts.
	TwoFactorAttemptWindowSeconds = 900
	// BackupCodeCount is the size of a freshly issued backup-code set.
	BackupCodeCount = 10
	// BackupCodeLength is the number of hex characters per backup code. It must
	// stay distinguishable from a 6-digit TOTP code by length alone.
	BackupCodeLength = 8
)

// Messaging provider types.
const (
	ProviderJetstream = "jetstream"
	ProviderGCP       = "gcp"
	ProviderAWS       = "aws"
	ProviderMemory    = "memory"
)

var ArrayConfigFields = []string{
	"app.trusted_proxies",
	"app.allowed_origins",
	"cache.redis.hosts",
	"cache.valkey.hosts",
}

var ConfigFileSearchPaths = []string{
	"./config.yaml",
	"templates/config.yaml",
}

var AuthProviderKeys = []string{
	"name",
	"client_id",
	"client_secret",
	"issuer",
}
