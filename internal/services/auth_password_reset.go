package services

import (
	"strconv"
	"strings"
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
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuthPasswordResetService struct {
	DB             *gorm.DB
	Cache          cache.ICache
	AuthConfig     models.AuthConfig
	Publisher      messaging.IPublisher
	ActivityLogger activity.IActivityLogger
}

func NewAuthPasswordResetService(s AuthService) AuthPasswordResetService {
	return AuthPasswordResetService{
		DB:             s.DB,
		Cache:          s.Cache,
		AuthConfig:     s.AuthConfig,
		Publisher:      s.Publisher,
		ActivityLogger: s.ActivityLogger,
	}
}

func (s AuthPasswordResetService) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(m.Validate[models.PasswordResetRequestBody]).
		Post("/", handlers.BodyHandler(s.RequestPasswordReset))

	r.Route("/{id0}", func(r chi.Router) {
		r.With(m.Validate[models.PasswordResetValidateBody]).
			Post("/validate", handlers.CreateHandler(s.ValidatePasswordReset))
		r.With(m.Validate[models.PasswordResetCompleteBody]).
			Post("/complete", handlers.BodyHandler(s.CompletePasswordReset))
	})

	return r
}

func (s AuthPasswordResetService) verifier() codeVerifier {
	return newCodeVerifier(s.DB, s.Cache, s.AuthConfig, s.Publisher, s.ActivityLogger)
}

// RequestPasswordReset mails a reset code to the address if an account exists
// behind it. The response is 204 either way; whether an address holds an
// account is not disclosed. A new request replaces any outstanding challenge
// for the same account.
func (s AuthPasswordResetService) RequestPasswordReset(
	logger *zap.Logger,
	_ models.UserClaims,
	_ uuid.UUIDs,
	body models.PasswordResetRequestBody,
) error {
	var user models.User
	result := s.DB.Where("email = ? AND provider_type = ?", body.Email, models.LocalProviderType).
		First(&user)

	if result.RowsAffected == 0 {
		return nil
	}

	secret, err := h.GenerateSecret()
	if err != nil {
		logger.Error("Failed to generate secret", zap.Error(err))
		return apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	hashedSecret, err := h.CreateHash(secret)
	if err != nil {
		logger.Error("Failed to hash secret", zap.Error(err))
		return apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	s.DB.Where("user_id = ? AND type = ?", user.ID, models.ChallengeTypePasswordReset).
		Delete(&models.Challenge{})

	expiresAt := time.Now().Add(configuration.SecurityChallengeExpirationMinutes * time.Minute)
	challenge := models.Challenge{
		Type:         models.ChallengeTypePasswordReset,
		UserID:       &user.ID,
		HashedSecret: hashedSecret,
		ExpiresAt:    &expiresAt,
		AttemptsLeft: configuration.SecurityChallengeMaxFailedAttempts,
	}

	result = s.DB.Create(&challenge)
	if result.Error != nil {
		logger.Error("Failed to create challenge", zap.Error(result.Error))
		return apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	events.NewPasswordResetChallenge(
		s.Publisher,
		secret,
		user.Email,
		challenge.ID.String(),
		s.AuthConfig.WebURL,
	).Trigger()

	action := models.Activity{
		Message: activity.PasswordResetRequested,
		Object:  user.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":       activity.PasswordResetRequested,
			"user_id":      user.ID.String(),
			"challenge_id": challenge.ID.String(),
			"object_type":  "user",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log password reset request", zap.Error(logErr))
	}

	return nil
}

// ValidatePasswordReset checks the emailed code and exchanges it for a
// restricted token scoped to this challenge. Wrong codes burn one of the
// challenge's attempts; the challenge is removed once they run out. The
// submitted code is compared case-insensitively.
func (s AuthPasswordResetService) ValidatePasswordReset(
	logger *zap.Logger,
	_ models.UserClaims,
	ids uuid.UUIDs,
	body models.PasswordResetValidateBody,
) (models.PasswordResetValidateResponse, error) {
	challengeID := ids[0]

	var challenge models.Challenge

	// Outcome errors are carried out of the transaction separately, so the
	// attempt decrement and the lockout delete commit even when the caller is
	// refused. Returning them from the closure would roll those writes back.
	var flowErr error

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND type = ?", challengeID, models.ChallengeTypePasswordReset).
			First(&challenge)

		if result.RowsAffected == 0 {
			flowErr = apierrors.NewAPIError(400, apierrors.ErrInvalidRequest)
			return nil
		}

		if challenge.UserID == nil {
			logger.Error("Challenge has no associated user")
			flowErr = apierrors.NewAPIError(400, apierrors.ErrInvalidRequest)
			return nil
		}

		if challenge.ExpiresAt != nil && time.Now().After(*challenge.ExpiresAt) {
			if deleteErr := tx.Delete(&challenge).Error; deleteErr != nil {
				return deleteErr
			}
			flowErr = apierrors.NewAPIError(400, apierrors.ErrInvalidRequest)
			return nil
		}

		match, err := argon2id.ComparePasswordAndHash(
			strings.ToUpper(body.Code),
			challenge.HashedSecret,
		)
		if err != nil || !match {
			challenge.AttemptsLeft--

			if challenge.AttemptsLeft <= 0 {
				logger.Warn("Password reset challenge locked after repeated wrong codes",
					zap.String("challenge_id", challenge.ID.String()),
					zap.String("user_id", challenge.UserID.String()))
				if deleteErr := tx.Delete(&challenge).Error; deleteErr != nil {
					return deleteErr
				}
				flowErr = apierrors.NewAPIError(403, apierrors.ErrChallengeLocked)
				return nil
			}

			if updateErr := tx.Save(&challenge).Error; updateErr != nil {
				logger.Error("Failed to update attempts counter", zap.Error(updateErr))
				return updateErr
			}
			flowErr = apierrors.NewAPIError(401, apierrors.ErrWrongCode)
			return nil
		}

		return nil
	})
	if err != nil {
		logger.Error("Password reset validation failed", zap.Error(err))
		return models.PasswordResetValidateResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}
	if flowErr != nil {
		return models.PasswordResetValidateResponse{}, flowErr
	}

	var user models.User
	if err = s.DB.Preload("TwoFactorCredential").
		Where("id = ?", challenge.UserID).First(&user).Error; err != nil {
		logger.Error("Failed to load challenge subject", zap.Error(err))
		return models.PasswordResetValidateResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	// The challenge ID travels inside the token so that completion can prove
	// this exact code exchange happened, without a status column.
	resetToken, tokenErr := h.NewRestrictedAccessToken(
		s.AuthConfig.JWTSecret,
		&user,
		configuration.AudienceMFAReset,
		false,
		&challengeID,
		s.AuthConfig.ResetTokenExpiry,
	)
	if tokenErr != nil {
		logger.Error("Failed to generate restricted access token", zap.Error(tokenErr))
		return models.PasswordResetValidateResponse{}, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	twoFactorRequired := user.TwoFactorEnabled()

	action := models.Activity{
		Message: activity.PasswordResetCodeVerified,
		Object:  user.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":              activity.PasswordResetCodeVerified,
			"user_id":             user.ID.String(),
			"challenge_id":        challengeID.String(),
			"object_type":         "user",
			"two_factor_required": strconv.FormatBool(twoFactorRequired),
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log password reset code verification", zap.Error(logErr))
	}

	logger.Info("Password reset code verified",
		zap.String("user_id", user.ID.String()),
		zap.String("challenge_id", challengeID.String()),
		zap.Bool("two_factor_required", twoFactorRequired))

	return models.PasswordResetValidateResponse{
		ResetToken:        resetToken,
		TwoFactorRequired: twoFactorRequired,
	}, nil
}

// CompletePasswordReset applies the new password. The bearer is the restricted
// token from validation; its embedded challenge ID must match the URL. When
// the account has a second factor enabled, a current code is demanded here so
// the factor cannot be sidestepped through the reset flow. Every session of
// the account is revoked.
func (s AuthPasswordResetService) CompletePasswordReset(
	logger *zap.Logger,
	claims models.UserClaims,
	ids uuid.UUIDs,
	body models.PasswordResetCompleteBody,
) error {
	challengeID := ids[0]

	if claims.ChallengeID == nil || *claims.ChallengeID != challengeID {
		logger.Warn("Challenge mismatch in password reset completion",
			zap.String("url_challenge_id", challengeID.String()),
			zap.Any("token_challenge_id", claims.ChallengeID))
		return apierrors.NewAPIError(400, apierrors.ErrInvalidRequest)
	}

	challenge, err := s.getChallenge(challengeID, claims.UserID)
	if err != nil {
		return err
	}

	var user models.User
	if dbErr := s.DB.Preload("TwoFactorCredential").
		Where("id = ?", challenge.UserID).First(&user).Error; dbErr != nil {
		logger.Error("Failed to load challenge subject", zap.Error(dbErr))
		return apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	if user.TwoFactorEnabled() {
		if body.TwoFactorCode == "" {
			logger.Warn("Password reset completion without second factor",
				zap.String("user_id", user.ID.String()))
			return apierrors.NewAPIError(403, apierrors.ErrTwoFactorRequired)
		}
		if err = s.verifier().verifyCode(logger, &user, user.TwoFactorCredential,
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
		if deleteErr := tx.Delete(challenge).Error; deleteErr != nil {
			logger.Error("Failed to delete challenge", zap.Error(deleteErr))
			return apierrors.NewAPIError(500, apierrors.ErrInternalServer)
		}
		if _, revokeErr := sql.DeleteSessionsForUser(tx, user.ID); revokeErr != nil {
			logger.Error("Failed to revoke sessions", zap.Error(revokeErr))
			return apierrors.NewAPIError(500, apierrors.ErrInternalServer)
		}
		return nil
	})
	if err != nil {
		return err
	}

	resetDate := time.Now().Format("January 2, 2006 at 3:04 PM MST")
	events.NewPasswordResetSuccess(
		s.Publisher,
		user.Email,
		s.AuthConfig.WebURL,
		resetDate,
	).Trigger()

	action := models.Activity{
		Message: activity.PasswordResetCompleted,
		Object:  user.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":       activity.PasswordResetCompleted,
			"user_id":      user.ID.String(),
			"challenge_id": challengeID.String(),
			"object_type":  "user",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log password reset completion", zap.Error(logErr))
	}

	logger.Info("Password reset completed",
		zap.String("user_id", user.ID.String()),
		zap.String("challenge_id", challengeID.String()))

	return nil
}

func (s AuthPasswordResetService) getChallenge(
	challengeID uuid.UUID,
	userID uuid.UUID,
) (*models.Challenge, error) {
	var challenge models.Challenge
	result := s.DB.
		Where("id = ? AND type = ? AND user_id = ?",
			challengeID, models.ChallengeTypePasswordReset, userID).
		First(&challenge)

	if result.RowsAffected == 0 {
		return nil, apierrors.NewAPIError(400, apierrors.ErrInvalidRequest)
	}

	if challenge.ExpiresAt != nil && time.Now().After(*challenge.ExpiresAt) {
		s.DB.Delete(&challenge)
		return nil, apierrors.NewAPIError(400, apierrors.ErrInvalidRequest)
	}

	return &challenge, nil
}
