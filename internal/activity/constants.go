package activity

import (
	"strconv"
	"time"

	"api/internal/models"
)

// Security event names. Each value is used both as the activity message and
// as the "action" filter term, so it must stay a stable keyword.
const (
	UserLoggedIn  = "user_logged_in"
	UserLoggedOut = "user_logged_out"

	TwoFactorSetupInitiated     = "two_factor_setup_initiated"
	TwoFactorEnabled            = "two_factor_enabled"
	TwoFactorDisabled           = "two_factor_disabled"
	TwoFactorVerified           = "two_factor_verified"
	TwoFactorVerificationFailed = "two_factor_verification_failed"
	TwoFactorRateLimited        = "two_factor_rate_limited"

	BackupCodeConsumed     = "backup_code_consumed"
	BackupCodesRegenerated = "backup_codes_regenerated"

	PasswordChanged           = "password_changed"
	PasswordResetRequested    = "password_reset_requested"
	PasswordResetCodeVerified = "password_reset_code_verified"
	PasswordResetCompleted    = "password_reset_completed"

	SessionExpiredCleanup = "session_expired_cleanup"
)

// authorizedObjectTypes lists the object types whose payload may be attached
// to an activity entry. Everything else is filter fields only, so raw
// credentials can never end up in the log by accident.
var authorizedObjectTypes = map[string]bool{
	"user":                  true,
	"two_factor_credential": true,
	"login_session":         true,
}

func isAuthorizedObject(objectType string) bool {
	return authorizedObjectTypes[objectType]
}

// NewLogFilter stamps the filter with the current time in unix nanoseconds.
func NewLogFilter(fields map[string]string) models.LogFilter {
	return models.LogFilter{
		Timestamp: strconv.FormatInt(time.Now().UnixNano(), 10),
		Fields:    fields,
	}
}
