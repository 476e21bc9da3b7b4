package services

import (
	"encoding/base64"
	"errors"
	"time"

	"api/internal/activity"
	"api/internal/cache"
	"api/internal/configuration"
	apierrors "api/internal/errors"
	"api/internal/events"
	"api/internal/handlers"
	h "api/internal/helpers"
	"api/internal/messaging"
	m "api/internal/middlewares"
	"api/internal/models"
	"api/internal/sql"

	"github.com/alexedwards/argon2id"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TwoFactorService struct {
	DB             *gorm.DB
	Cache          cache.ICache
	AuthConfig     models.AuthConfig
	Publisher      messaging.IPublisher
	ActivityLogger activity.IActivityLogger
}

func (s TwoFactorService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/setup", handlers.ActionHandler(s.Setup))
	r.With(m.Validate[models.TwoFactorVerifySetupBody]).
		Post("/verify-setup", handlers.CreateHandler(s.VerifySetup))
	r.With(m.Validate[models.TwoFactorVerifyBody]).
		Post("/verify", handlers.CreateHandler(s.Verify))
	r.With(m.Validate[models.TwoFactorDisableBody]).
		Post("/disable", handlers.BodyHandler(s.Disable))
	r.Get("/status", handlers.GetOneHandler(s.Status))
	r.With(m.Validate[models.TwoFactorBackupCodesBody]).
		Post("/generate-backup-codes", handlers.CreateHandler(s.GenerateBackupCodes))

	return r
}

func (s TwoFactorService) verifier() codeVerifier {
	return newCodeVerifier(s.DB, s.Cache, s.AuthConfig, s.Publisher, s.ActivityLogger)
}

// Setup begins TOTP enrollment: it mints a fresh secret, stores it encrypted
// and unconfirmed, and returns the provisioning material. Calling it again
// before confirmation replaces the pending secret. Provider-managed accounts
// cannot enroll locally.
func (s TwoFactorService) Setup(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
) (models.TwoFactorSetupResponse, error) {
	user, err := s.loadSubject(claims.UserID)
	if err != nil {
		return models.TwoFactorSetupResponse{}, err
	}

	if user.TwoFactorEnabled() {
		return models.TwoFactorSetupResponse{}, apierrors.NewAPIError(409, apierrors.ErrAlreadyEnabled)
	}

	if !user.HasLocalCredentials() {
		logger.Debug("Second factor of provider accounts lives with the provider")
		return models.TwoFactorSetupResponse{}, apierrors.NewAPIError(403, apierrors.ErrForbidden)
	}

	totpKey, err := h.GenerateTOTPSecret(user.Email)
	if err != nil {
		logger.Error("Failed to generate TOTP secret", zap.Error(err))
		return models.TwoFactorSetupResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	encryptedSecret, err := h.EncryptSecret(totpKey.Secret, []byte(s.AuthConfig.EncryptionKey))
	if err != nil {
		logger.Error("Failed to encrypt TOTP secret", zap.Error(err))
		return models.TwoFactorSetupResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	credential := models.TwoFactorCredential{
		SubjectID:   user.ID,
		Secret:      encryptedSecret,
		Enabled:     false,
		BackupCodes: nil,
	}
	err = s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"secret", "enabled", "backup_codes", "updated_at"}),
	}).Create(&credential).Error
	if err != nil {
		logger.Error("Failed to store credential", zap.Error(err))
		return models.TwoFactorSetupResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	png, err := h.RenderProvisioningImage(totpKey.URL)
	if err != nil {
		logger.Error("Failed to render provisioning image", zap.Error(err))
		return models.TwoFactorSetupResponse{}, apierrors.NewAPIError(500, apierrors.ErrEncoding)
	}

	action := models.Activity{
		Message: activity.TwoFactorSetupInitiated,
		Object:  user.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.TwoFactorSetupInitiated,
			"user_id":     user.ID.String(),
			"object_type": "user",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log setup activity", zap.Error(logErr))
	}

	return models.TwoFactorSetupResponse{
		Secret:          totpKey.Secret,
		ProvisioningURI: totpKey.URL,
		QRCode:          "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

// VerifySetup confirms enrollment with a first valid TOTP code. Only then is
// the credential enabled and the initial backup-code set issued. The codes in
// the response are shown exactly once.
func (s TwoFactorService) VerifySetup(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
	body models.TwoFactorVerifySetupBody,
) (models.TwoFactorVerifySetupResponse, error) {
	user, err := s.loadSubject(claims.UserID)
	if err != nil {
		return models.TwoFactorVerifySetupResponse{}, err
	}

	credential := user.TwoFactorCredential
	if credential == nil {
		return models.TwoFactorVerifySetupResponse{}, apierrors.NewAPIError(400, apierrors.ErrNotInitiated)
	}
	if credential.Enabled {
		return models.TwoFactorVerifySetupResponse{}, apierrors.NewAPIError(409, apierrors.ErrAlreadyEnabled)
	}

	if err = s.verifier().verifyCode(logger, user, credential, claims.ClientIP, body.Token); err != nil {
		return models.TwoFactorVerifySetupResponse{}, err
	}

	backupCodes, err := h.GenerateBackupCodes(configuration.BackupCodeCount)
	if err != nil {
		logger.Error("Failed to generate backup codes", zap.Error(err))
		return models.TwoFactorVerifySetupResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	err = s.DB.Model(credential).Updates(map[string]interface{}{
		"enabled":      true,
		"backup_codes": pq.StringArray(backupCodes),
	}).Error
	if err != nil {
		logger.Error("Failed to enable credential", zap.Error(err))
		return models.TwoFactorVerifySetupResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	action := models.Activity{
		Message: activity.TwoFactorEnabled,
		Object:  user.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.TwoFactorEnabled,
			"user_id":     user.ID.String(),
			"object_type": "user",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log enable activity", zap.Error(logErr))
	}

	events.NewTwoFactorEnabled(s.Publisher, user.Email, s.AuthConfig.WebURL).Trigger()

	logger.Info("Two-factor authentication enabled", zap.String("user_id", user.ID.String()))

	return models.TwoFactorVerifySetupResponse{BackupCodes: backupCodes}, nil
}

// Verify is the second step of login. The pending session arrives as a raw
// token in the body, not as a bearer header, because the session is not yet
// authenticated. A valid code promotes the session in place: same token, full
// lifetime, never demoted.
func (s TwoFactorService) Verify(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
	body models.TwoFactorVerifyBody,
) (models.AuthLoginResponse, error) {
	session, err := sql.GetSessionByTokenHash(s.DB, h.HashSessionToken(body.SessionToken))
	if err != nil {
		return models.AuthLoginResponse{}, err
	}

	if session.Expired() {
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, apierrors.ErrSessionExpired)
	}

	if session.TwoFactorComplete {
		return models.AuthLoginResponse{}, apierrors.NewAPIError(409, apierrors.ErrAlreadyComplete)
	}

	user := session.Subject
	if user == nil {
		logger.Error("Session has no subject", zap.String("session_id", session.ID.String()))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(401, apierrors.ErrSessionNotFound)
	}

	credential := user.TwoFactorCredential
	if credential == nil || !credential.Enabled {
		return models.AuthLoginResponse{}, apierrors.NewAPIError(400, apierrors.ErrNotInitiated)
	}

	if err = s.verifier().verifyCode(logger, user, credential, claims.ClientIP, body.Token); err != nil {
		return models.AuthLoginResponse{}, err
	}

	expiresAt := time.Now().Add(time.Duration(s.AuthConfig.SessionExpiry) * time.Hour)
	err = s.DB.Model(&models.LoginSession{}).Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"two_factor_complete": true,
			"expires_at":          expiresAt,
		}).Error
	if err != nil {
		logger.Error("Failed to promote session", zap.Error(err))
		return models.AuthLoginResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	action := models.Activity{
		Message: activity.TwoFactorVerified,
		Object:  user.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.TwoFactorVerified,
			"user_id":     user.ID.String(),
			"object_type": "user",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log verification activity", zap.Error(logErr))
	}

	logger.Info("Login second factor verified", zap.String("user_id", user.ID.String()))

	return models.AuthLoginResponse{
		Token:             body.SessionToken,
		TwoFactorRequired: false,
		ExpiresAt:         expiresAt,
	}, nil
}

// Disable turns the second factor off. It demands the account password and a
// current code, so a hijacked session alone cannot weaken the account. The
// credential row is removed outright along with its backup codes.
func (s TwoFactorService) Disable(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
	body models.TwoFactorDisableBody,
) error {
	user, err := s.loadSubject(claims.UserID)
	if err != nil {
		return err
	}

	credential := user.TwoFactorCredential
	if credential == nil || !credential.Enabled {
		return apierrors.NewAPIError(400, apierrors.ErrNotInitiated)
	}

	match, err := argon2id.ComparePasswordAndHash(body.Password, user.HashedPassword)
	if err != nil || !match {
		logger.Warn("Disable refused, wrong password", zap.String("user_id", user.ID.String()))
		return apierrors.NewAPIError(401, apierrors.ErrInvalidCredentials)
	}

	if err = s.verifier().verifyCode(logger, user, credential, claims.ClientIP, body.Token); err != nil {
		return err
	}

	if err = s.DB.Delete(credential).Error; err != nil {
		logger.Error("Failed to delete credential", zap.Error(err))
		return apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	action := models.Activity{
		Message: activity.TwoFactorDisabled,
		Object:  user.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.TwoFactorDisabled,
			"user_id":     user.ID.String(),
			"object_type": "user",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log disable activity", zap.Error(logErr))
	}

	events.NewTwoFactorDisabled(s.Publisher, user.Email, s.AuthConfig.WebURL).Trigger()

	logger.Info("Two-factor authentication disabled", zap.String("user_id", user.ID.String()))

	return nil
}

// Status reports the credential state without touching any secret material.
func (s TwoFactorService) Status(
	_ *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
) (models.TwoFactorStatusResponse, error) {
	var credential models.TwoFactorCredential
	err := s.DB.Where("subject_id = ?", claims.UserID).First(&credential).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TwoFactorStatusResponse{}, nil
		}
		return models.TwoFactorStatusResponse{}, err
	}

	return models.TwoFactorStatusResponse{
		Enabled:              credential.Enabled,
		SetupInitiated:       true,
		LastUsedAt:           credential.LastUsedAt,
		BackupCodesRemaining: len(credential.BackupCodes),
	}, nil
}

// GenerateBackupCodes replaces the stored set wholesale after a fresh TOTP
// check. Backup codes cannot authorize their own reissue; the body validation
// only admits 6-digit codes here.
func (s TwoFactorService) GenerateBackupCodes(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
	body models.TwoFactorBackupCodesBody,
) (models.TwoFactorBackupCodesResponse, error) {
	user, err := s.loadSubject(claims.UserID)
	if err != nil {
		return models.TwoFactorBackupCodesResponse{}, err
	}

	credential := user.TwoFactorCredential
	if credential == nil || !credential.Enabled {
		return models.TwoFactorBackupCodesResponse{}, apierrors.NewAPIError(400, apierrors.ErrNotInitiated)
	}

	if err = s.verifier().verifyCode(logger, user, credential, claims.ClientIP, body.Token); err != nil {
		return models.TwoFactorBackupCodesResponse{}, err
	}

	backupCodes, err := h.GenerateBackupCodes(configuration.BackupCodeCount)
	if err != nil {
		logger.Error("Failed to generate backup codes", zap.Error(err))
		return models.TwoFactorBackupCodesResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	err = s.DB.Model(credential).Update("backup_codes", pq.StringArray(backupCodes)).Error
	if err != nil {
		logger.Error("Failed to store backup codes", zap.Error(err))
		return models.TwoFactorBackupCodesResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	action := models.Activity{
		Message: activity.BackupCodesRegenerated,
		Object:  user.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.BackupCodesRegenerated,
			"user_id":     user.ID.String(),
			"object_type": "user",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log backup code regeneration", zap.Error(logErr))
	}

	events.NewBackupCodesRegenerated(s.Publisher, user.Email, s.AuthConfig.WebURL).Trigger()

	return models.TwoFactorBackupCodesResponse{BackupCodes: backupCodes}, nil
}

func (s TwoFactorService) loadSubject(userID uuid.UUID) (*models.User, error) {
	var user models.User
	result := s.DB.Preload("TwoFactorCredential").Where("id = ?", userID).First(&user)
	if result.RowsAffected == 0 {
		return nil, apierrors.NewAPIError(404, apierrors.ErrUserNotFound)
	}
	return &user, nil
}
