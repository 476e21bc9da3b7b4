package sql

import (
	"errors"
	"time"

	apierrors "api/internal/errors"
	"api/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetSessionByTokenHash resolves a bearer token hash to its session row with
// the subject and two-factor credential preloaded. Expiry is not checked
// here; callers decide how stale sessions are reported.
func GetSessionByTokenHash(db *gorm.DB, tokenHash string) (models.LoginSession, error) {
	var session models.LoginSession

	err := db.Preload("Subject").
		Preload("Subject.TwoFactorCredential").
		Where("token_hash = ?", tokenHash).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.LoginSession{}, apierrors.NewAPIError(401, apierrors.ErrSessionNotFound)
		}
		return models.LoginSession{}, err
	}

	return session, nil
}

// DeleteSessionByTokenHash revokes the single session behind a token hash.
// Deleting an already absent session is not an error.
func DeleteSessionByTokenHash(db *gorm.DB, tokenHash string) (int64, error) {
	result := db.Where("token_hash = ?", tokenHash).Delete(&models.LoginSession{})
	return result.RowsAffected, result.Error
}

// DeleteSessionsForUser revokes every session belonging to userID.
func DeleteSessionsForUser(db *gorm.DB, userID uuid.UUID) (int64, error) {
	result := db.Where("subject_id = ?", userID).Delete(&models.LoginSession{})
	return result.RowsAffected, result.Error
}

// DeleteExpiredSessions removes sessions past their expiry.
func DeleteExpiredSessions(db *gorm.DB) (int64, error) {
	result := db.Where("expires_at <= ?", time.Now()).Delete(&models.LoginSession{})
	return result.RowsAffected, result.Error
}

// CountSessions returns live session counts split by completion state.
func CountSessions(db *gorm.DB) (active int64, pending int64) {
	now := time.Now()

	db.Model(&models.LoginSession{}).
		Where("expires_at > ? AND two_factor_complete = ?", now, true).
		Count(&active)

	db.Model(&models.LoginSession{}).
		Where("expires_at > ? AND two_factor_complete = ?", now, false).
		Count(&pending)

	return active, pending
}
