package services

import (
	"time"

	"api/internal/activity"
	"api/internal/cache"
	apierrors "api/internal/errors"
	"api/internal/events"
	"api/internal/handlers"
	h "api/internal/helpers"
	"api/internal/messaging"
	m "api/internal/middlewares"
	"api/internal/models"

	"github.com/alexedwards/argon2id"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserService struct {
	DB             *gorm.DB
	Cache          cache.ICache
	AuthConfig     models.AuthConfig
	Publisher      messaging.IPublisher
	ActivityLogger activity.IActivityLogger
}

func (s UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/me", handlers.GetOneHandler(s.GetMe))
	r.With(m.Validate[models.UserUpdatePasswordBody]).
		Put("/me/password", handlers.BodyHandler(s.UpdatePassword))

	return r
}

func (s UserService) verifier() codeVerifier {
	return newCodeVerifier(s.DB, s.Cache, s.AuthConfig, s.Publisher, s.ActivityLogger)
}

func (s UserService) GetMe(
	_ *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
) (models.UserResponse, error) {
	user, err := s.loadSubject(claims.UserID)
	if err != nil {
		return models.UserResponse{}, err
	}
	return user.ToResponse(), nil
}

// UpdatePassword changes the account password after proving the current one.
// Accounts with an enabled second factor must also submit a current code.
// Every other session of the account is revoked; the calling session stays.
func (s UserService) UpdatePassword(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
	body models.UserUpdatePasswordBody,
) error {
	user, err := s.loadSubject(claims.UserID)
	if err != nil {
		return err
	}

	if !user.HasLocalCredentials() {
		logger.Debug("Provider accounts have no local password")
		return apierrors.NewAPIError(403, apierrors.ErrForbidden)
	}

	match, err := argon2id.ComparePasswordAndHash(body.CurrentPassword, user.HashedPassword)
	if err != nil || !match {
		logger.Warn("Password change refused, wrong current password",
			zap.String("user_id", user.ID.String()))
		return apierrors.NewAPIError(401, apierrors.ErrInvalidCredentials)
	}

	if user.TwoFactorEnabled() {
		if body.TwoFactorCode == "" {
			return apierrors.NewAPIError(403, apierrors.ErrTwoFactorRequired)
		}
		if err = s.verifier().verifyCode(logger, user, user.TwoFactorCredential,
			claims.ClientIP, body.TwoFactorCode); err != nil {
			return err
		}
	}

	hashedPassword, err := h.CreateHash(body.NewPassword)
	if err != nil {
		logger.Error("Failed to hash new password", zap.Error(err))
		return apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if updateErr := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("hashed_password", hashedPassword).Error; updateErr != nil {
			logger.Error("Failed to update password", zap.Error(updateErr))
			return apierrors.NewAPIError(500, apierrors.ErrInternalServer)
		}
		revoked := tx.Where("subject_id = ? AND token_hash <> ?", user.ID, claims.SessionTokenHash).
			Delete(&models.LoginSession{})
		if revoked.Error != nil {
			logger.Error("Failed to revoke other sessions", zap.Error(revoked.Error))
			return apierrors.NewAPIError(500, apierrors.ErrInternalServer)
		}
		return nil
	})
	if err != nil {
		return err
	}

	events.NewPasswordChanged(
		s.Publisher,
		user.Email,
		s.AuthConfig.WebURL,
		time.Now().Format("January 2, 2006 at 3:04 PM MST"),
	).Trigger()

	action := models.Activity{
		Message: activity.PasswordChanged,
		Object:  user.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.PasswordChanged,
			"user_id":     user.ID.String(),
			"object_type": "user",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log password change", zap.Error(logErr))
	}

	logger.Info("Password changed", zap.String("user_id", user.ID.String()))

	return nil
}

func (s UserService) loadSubject(userID uuid.UUID) (*models.User, error) {
	var user models.User
	result := s.DB.Preload("TwoFactorCredential").Where("id = ?", userID).First(&user)
	if result.RowsAffected == 0 {
		return nil, apierrors.NewAPIError(404, apierrors.ErrUserNotFound)
	}
	return &user, nil
}
