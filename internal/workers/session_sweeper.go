package workers

import (
	"context"
	"strconv"
	"time"

	"api/internal/activity"
	"api/internal/models"
	"api/internal/sql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SweepAbandonedSetupThreshold is how long an unconfirmed two-factor
// enrollment may sit before its credential row is removed.
const SweepAbandonedSetupThreshold = 24 * time.Hour

// SessionSweeperWorker periodically removes expired login sessions, spent
// password-reset challenges, abandoned two-factor enrollments and aged
// verification attempts.
type SessionSweeperWorker struct {
	DB                   *gorm.DB
	ActivityLogger       activity.IActivityLogger
	AttemptRetentionDays int
	RunInterval          time.Duration
}

func (w *SessionSweeperWorker) Start(ctx context.Context) {
	StartPeriodicWorker(ctx, w.DB, "session_sweeper", w.RunInterval, w.tasks())
}

func (w *SessionSweeperWorker) tasks() []WorkerTask {
	return []WorkerTask{
		{Name: "expired_sessions", Fn: w.cleanupExpiredSessions},
		{Name: "expired_challenges", Fn: w.cleanupExpiredChallenges},
		{Name: "abandoned_setups", Fn: w.cleanupAbandonedSetups},
		{Name: "stale_attempts", Fn: w.cleanupStaleAttempts},
	}
}

// cleanupExpiredSessions removes sessions past their expiry, covering both
// pending logins that never presented a second factor and full sessions past
// the long clock.
func (w *SessionSweeperWorker) cleanupExpiredSessions(_ context.Context) (int, error) {
	count, err := sql.DeleteExpiredSessions(w.DB)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		zap.L().Debug("Deleted expired sessions", zap.Int64("count", count))

		entry := models.Activity{
			Message: activity.SessionExpiredCleanup,
			Filter: activity.NewLogFilter(map[string]string{
				"action":      activity.SessionExpiredCleanup,
				"object_type": "login_session",
				"count":       strconv.FormatInt(count, 10),
			}),
		}
		if logErr := w.ActivityLogger.Send(entry); logErr != nil {
			zap.L().Error("Failed to log session cleanup activity", zap.Error(logErr))
		}
	}

	return int(count), nil
}

// cleanupExpiredChallenges hard-deletes reset challenges that expired or were
// already consumed.
func (w *SessionSweeperWorker) cleanupExpiredChallenges(_ context.Context) (int, error) {
	result := w.DB.Unscoped().
		Where("(expires_at IS NOT NULL AND expires_at < ?) OR deleted_at IS NOT NULL", time.Now()).
		Delete(&models.Challenge{})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		zap.L().Debug("Deleted expired challenges", zap.Int64("count", result.RowsAffected))
	}

	return int(result.RowsAffected), nil
}

// cleanupAbandonedSetups removes credential rows whose enrollment was never
// confirmed with a first code. The subject can simply start setup again.
func (w *SessionSweeperWorker) cleanupAbandonedSetups(_ context.Context) (int, error) {
	threshold := time.Now().Add(-SweepAbandonedSetupThreshold)

	result := w.DB.
		Where("enabled = ? AND created_at < ?", false, threshold).
		Delete(&models.TwoFactorCredential{})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		zap.L().Debug("Deleted abandoned two-factor setups", zap.Int64("count", result.RowsAffected))
	}

	return int(result.RowsAffected), nil
}

// cleanupStaleAttempts purges verification attempts past the retention window.
func (w *SessionSweeperWorker) cleanupStaleAttempts(_ context.Context) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -w.AttemptRetentionDays)

	count, err := sql.DeleteAttemptsOlderThan(w.DB, cutoff)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		zap.L().Debug("Deleted aged verification attempts", zap.Int64("count", count))
	}

	return int(count), nil
}
