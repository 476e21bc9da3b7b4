package models

// AdminStatsQueryParams represents query parameters for admin stats endpoint.
type AdminStatsQueryParams struct {
	Days int `json:"days" validate:"omitempty,oneof=30 90 180"`
}

// AdminActivityQueryParams filters the audit log search. Empty fields match
// everything.
type AdminActivityQueryParams struct {
	Action     string `json:"action"      validate:"omitempty,max=64"`
	UserID     string `json:"user_id"     validate:"omitempty,uuid"`
	ObjectType string `json:"object_type" validate:"omitempty,max=32"`
}

type AdminActivityDailyQueryParams struct {
	Action string `json:"action" validate:"required,max=64"`
	Days   int    `json:"days"   validate:"omitempty,oneof=7 30 90"`
}

// AdminStatsResponse contains platform-wide authentication statistics for the
// admin dashboard.
type AdminStatsResponse struct {
	TotalUsers            int64             `json:"total_users"`
	TwoFactorEnabledUsers int64             `json:"two_factor_enabled_users"`
	ActiveSessions        int64             `json:"active_sessions"`
	PendingSessions       int64             `json:"pending_sessions"`
	FailedAttemptsPerDay  []TimeSeriesPoint `json:"failed_attempts_per_day"`
}

// TimeSeriesPoint represents a data point in a time series chart.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
