package services

import (
	"time"

	"api/internal/activity"
	"api/internal/cache"
	apierrors "api/internal/errors"
	"api/internal/events"
	h "api/internal/helpers"
	"api/internal/limiter"
	"api/internal/messaging"
	"api/internal/mfacode"
	"api/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// codeVerifier is the one path every submitted second-factor code goes
// through, wherever the submission comes from: login verification, setup
// confirmation, disabling, backup-code reissue or password reset. It spends
// the attempt budget before verifying, dispatches between the TOTP and
// backup-code verifiers, enforces replay protection and appends the audit
// row. Successful verification never refunds spent attempts.
type codeVerifier struct {
	db             *gorm.DB
	limiter        *limiter.AttemptLimiter
	cache          cache.ICache
	encryptionKey  []byte
	webURL         string
	publisher      messaging.IPublisher
	activityLogger activity.IActivityLogger
}

func newCodeVerifier(
	db *gorm.DB,
	c cache.ICache,
	authConfig models.AuthConfig,
	publisher messaging.IPublisher,
	activityLogger activity.IActivityLogger,
) codeVerifier {
	return codeVerifier{
		db:             db,
		limiter:        limiter.NewAttemptLimiter(c),
		cache:          c,
		encryptionKey:  []byte(authConfig.EncryptionKey),
		webURL:         authConfig.WebURL,
		publisher:      publisher,
		activityLogger: activityLogger,
	}
}

// verifyCode checks one submitted code against the subject's credential.
// The attempt is spent first, so a denied or failed verification has already
// been counted by the time the caller sees the error. A consumed backup code
// is removed from the stored set before the call returns.
func (v codeVerifier) verifyCode(
	logger *zap.Logger,
	user *models.User,
	credential *models.TwoFactorCredential,
	clientIP string,
	raw string,
) error {
	decision, err := v.limiter.Allow(clientIP, user.ID.String())
	if err != nil {
		// The shared counter being unreachable must not lock every subject out.
		logger.Warn("Attempt limiter unavailable", zap.Error(err))
	} else if !decision.Allowed {
		v.reportRateLimited(logger, user, clientIP, decision)
		return apierrors.NewRateLimitedError(decision.RetryAfterSeconds)
	}

	submission := mfacode.Parse(raw)

	var verified bool
	switch submission.Kind {
	case mfacode.KindBackup:
		verified, err = v.verifyBackupCode(logger, user, credential, submission.Code)
	default:
		verified, err = v.verifyTOTPCode(logger, user, credential, submission.Code)
	}
	if err != nil {
		return err
	}

	v.recordAttempt(logger, user.ID, clientIP, verified, mfacode.Mask(raw))

	if !verified {
		v.reportFailure(logger, user, clientIP, submission.Kind)
		return apierrors.NewAPIError(401, apierrors.ErrInvalidCode)
	}

	if err = v.db.Model(credential).Update("last_used_at", time.Now()).Error; err != nil {
		logger.Error("Failed to stamp credential usage", zap.Error(err))
	}

	return nil
}

func (v codeVerifier) verifyTOTPCode(
	logger *zap.Logger,
	user *models.User,
	credential *models.TwoFactorCredential,
	code string,
) (bool, error) {
	secret, err := h.DecryptSecret(credential.Secret, v.encryptionKey)
	if err != nil {
		logger.Error("Failed to decrypt TOTP secret", zap.Error(err))
		return false, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	if !h.ValidateTOTPCode(secret, code) {
		return false, nil
	}

	// A code that validated once must not validate again inside the drift
	// window, or an intercepted code stays usable for up to a minute.
	fresh, err := v.cache.MarkTOTPCodeUsed(user.ID.String(), code)
	if err != nil {
		logger.Error("Failed to check TOTP code reuse", zap.Error(err))
		return false, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}
	if !fresh {
		logger.Warn("Replayed TOTP code rejected", zap.String("user_id", user.ID.String()))
		return false, nil
	}

	return true, nil
}

func (v codeVerifier) verifyBackupCode(
	logger *zap.Logger,
	user *models.User,
	credential *models.TwoFactorCredential,
	code string,
) (bool, error) {
	matched, remaining := mfacode.VerifyBackupCode(code, credential.BackupCodes)
	if !matched {
		return false, nil
	}

	if err := v.db.Model(credential).
		Update("backup_codes", pq.StringArray(remaining)).Error; err != nil {
		logger.Error("Failed to consume backup code", zap.Error(err))
		return false, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}
	credential.BackupCodes = remaining

	action := models.Activity{
		Message: activity.BackupCodeConsumed,
		Object:  credential.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.BackupCodeConsumed,
			"user_id":     user.ID.String(),
			"object_type": "two_factor_credential",
		}),
	}
	if logErr := v.activityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log backup code use", zap.Error(logErr))
	}

	if len(remaining) == 0 {
		logger.Warn("Subject has no backup codes left", zap.String("user_id", user.ID.String()))
	}

	return true, nil
}

// recordAttempt appends the audit row for one verification call. The audit
// trail fails soft: a write error is logged and the verification outcome
// stands.
func (v codeVerifier) recordAttempt(
	logger *zap.Logger,
	subjectID uuid.UUID,
	clientIP string,
	success bool,
	fragment string,
) {
	attempt := models.VerificationAttempt{
		SubjectID:     subjectID,
		ClientIP:      clientIP,
		Success:       success,
		TokenFragment: fragment,
	}
	if err := v.db.Create(&attempt).Error; err != nil {
		logger.Error("Failed to record verification attempt", zap.Error(err))
	}
}

func (v codeVerifier) reportRateLimited(
	logger *zap.Logger,
	user *models.User,
	clientIP string,
	decision limiter.Decision,
) {
	logger.Warn("Verification attempts rate limited",
		zap.String("user_id", user.ID.String()),
		zap.Int64("attempts", decision.Attempts),
		zap.Int("retry_after_seconds", decision.RetryAfterSeconds))

	action := models.Activity{
		Message: activity.TwoFactorRateLimited,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.TwoFactorRateLimited,
			"user_id":     user.ID.String(),
			"client_ip":   clientIP,
			"object_type": "two_factor_credential",
		}),
	}
	if logErr := v.activityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log rate limit event", zap.Error(logErr))
	}

	events.NewVerificationRateLimited(
		v.publisher, user.Email, v.webURL, decision.RetryAfterSeconds,
	).Trigger()
}

func (v codeVerifier) reportFailure(
	logger *zap.Logger,
	user *models.User,
	clientIP string,
	kind mfacode.Kind,
) {
	logger.Warn("Second-factor verification failed",
		zap.String("user_id", user.ID.String()),
		zap.String("kind", string(kind)))

	action := models.Activity{
		Message: activity.TwoFactorVerificationFailed,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.TwoFactorVerificationFailed,
			"user_id":     user.ID.String(),
			"client_ip":   clientIP,
			"kind":        string(kind),
			"object_type": "two_factor_credential",
		}),
	}
	if logErr := v.activityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log verification failure", zap.Error(logErr))
	}
}
