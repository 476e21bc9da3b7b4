package sql

import (
	"time"

	"api/internal/models"

	"gorm.io/gorm"
)

// GetFailedAttemptsByDay aggregates failed verification attempts per day over
// the trailing window. Days with no failures are omitted.
func GetFailedAttemptsByDay(db *gorm.DB, days int) []models.TimeSeriesPoint {
	dateExpr := "TO_CHAR(verification_attempts.created_at, 'YYYY-MM-DD')"
	if db.Dialector.Name() == "sqlite" {
		dateExpr = "strftime('%Y-%m-%d', verification_attempts.created_at)"
	}

	var result []models.TimeSeriesPoint

	db.Model(&models.VerificationAttempt{}).
		Select(dateExpr+" as date, COUNT(*) as count").
		Where("verification_attempts.success = ?", false).
		Where("verification_attempts.created_at >= ?", time.Now().AddDate(0, 0, -days)).
		Group(dateExpr).
		Order("date ASC").
		Scan(&result)

	return result
}

// DeleteAttemptsOlderThan purges verification attempt rows past the retention
// cutoff.
func DeleteAttemptsOlderThan(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("created_at < ?", cutoff).Delete(&models.VerificationAttempt{})
	return result.RowsAffected, result.Error
}
