package activity

import "api/internal/models"

// IActivityLogger is the append-only security audit trail. Send failures must
// never abort the operation being recorded; callers log and move on.
type IActivityLogger interface {
	Search(searchCriteria map[string][]string) ([]map[string]interface{}, error)
	Send(message models.Activity) error
	CountByDay(searchCriteria map[string][]string, days int) ([]models.TimeSeriesPoint, error)
	Close() error
}
