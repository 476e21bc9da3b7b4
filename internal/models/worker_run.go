package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkerRunStatus string

const (
	WorkerRunStatusRunning   WorkerRunStatus = "running"
	WorkerRunStatusCompleted WorkerRunStatus = "completed"
	WorkerRunStatusFailed    WorkerRunStatus = "failed"
)

type WorkerRun struct {
	ID             uuid.UUID       `gorm:"type:uuid;primarykey"                              json:"id"`
	WorkerName     string          `gorm:"type:varchar(64);not null"                         json:"worker_name"`
	Status         WorkerRunStatus `gorm:"type:worker_run_status;not null;default:'running'" json:"status"`
	ItemsProcessed int             `gorm:"not null;default:0"                                json:"items_processed"`
	Error          string          `gorm:"type:text"                                         json:"error,omitempty"`
	StartedAt      time.Time       `gorm:"not null"                                          json:"started_at"`
	EndedAt        time.Time       `                                                         json:"ended_at"`
}

func (w *WorkerRun) BeforeCreate(_ *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
