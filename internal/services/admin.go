package services

import (
	"api/internal/activity"
	apierrors "api/internal/errors"
	"api/internal/handlers"
	m "api/internal/middlewares"
	"api/internal/models"
	"api/internal/sql"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AdminService struct {
	DB             *gorm.DB
	ActivityLogger activity.IActivityLogger
}

func (s AdminService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(m.AuthorizeRole(models.RoleAdmin))

	r.With(m.ValidateQuery[models.AdminStatsQueryParams]).
		Get("/stats", handlers.GetOneWithQueryHandler(s.GetStats))
	r.With(m.ValidateQuery[models.AdminActivityQueryParams]).
		Get("/activity", handlers.GetOneWithQueryHandler(s.SearchActivity))
	r.With(m.ValidateQuery[models.AdminActivityDailyQueryParams]).
		Get("/activity/daily", handlers.GetOneWithQueryHandler(s.GetActivityByDay))

	return r
}

func (s AdminService) GetStats(
	_ *zap.Logger,
	_ models.UserClaims,
	_ uuid.UUIDs,
	queryParams models.AdminStatsQueryParams,
) (models.AdminStatsResponse, error) {
	days := queryParams.Days
	if days == 0 {
		days = 30
	}

	var response models.AdminStatsResponse

	s.DB.Model(&models.User{}).Count(&response.TotalUsers)

	s.DB.Model(&models.TwoFactorCredential{}).
		Where("enabled = ?", true).
		Count(&response.TwoFactorEnabledUsers)

	response.ActiveSessions, response.PendingSessions = sql.CountSessions(s.DB)

	response.FailedAttemptsPerDay = sql.GetFailedAttemptsByDay(s.DB, days)

	return response, nil
}

// SearchActivity queries the audit log. Results are capped by the activity
// backend's own window; an empty result is an empty array, never null.
func (s AdminService) SearchActivity(
	logger *zap.Logger,
	_ models.UserClaims,
	_ uuid.UUIDs,
	queryParams models.AdminActivityQueryParams,
) ([]map[string]any, error) {
	criteria := map[string][]string{}
	if queryParams.Action != "" {
		criteria["action"] = []string{queryParams.Action}
	}
	if queryParams.UserID != "" {
		criteria["user_id"] = []string{queryParams.UserID}
	}
	if queryParams.ObjectType != "" {
		criteria["object_type"] = []string{queryParams.ObjectType}
	}

	activities, err := s.ActivityLogger.Search(criteria)
	if err != nil {
		logger.Error("Failed to search activity", zap.Error(err))
		return nil, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	if activities == nil {
		activities = []map[string]any{}
	}
	return activities, nil
}

func (s AdminService) GetActivityByDay(
	logger *zap.Logger,
	_ models.UserClaims,
	_ uuid.UUIDs,
	queryParams models.AdminActivityDailyQueryParams,
) ([]models.TimeSeriesPoint, error) {
	days := queryParams.Days
	if days == 0 {
		days = 30
	}

	points, err := s.ActivityLogger.CountByDay(
		map[string][]string{"action": {queryParams.Action}},
		days,
	)
	if err != nil {
		logger.Error("Failed to count activity by day", zap.Error(err))
		return nil, apierrors.NewAPIError(500, apierrors.ErrInternalServer)
	}

	if points == nil {
		points = []models.TimeSeriesPoint{}
	}
	return points, nil
}
