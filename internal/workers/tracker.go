package workers

import (
	"context"
	"strings"
	"time"

	"api/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkerTask represents a named operation to be executed during a worker run.
// Fn reports how many rows it affected so the run record carries a total.
type WorkerTask struct {
	Name string
	Fn   func(ctx context.Context) (int, error)
}

func executeTasks(ctx context.Context, tasks []WorkerTask) ([]int, []string) {
	counts := make([]int, len(tasks))

	var failures []string

	for i, task := range tasks {
		count, taskErr := task.Fn(ctx)
		if taskErr != nil {
			zap.L().Error("Cleanup task failed",
				zap.String("task", task.Name),
				zap.Error(taskErr))
			failures = append(failures, task.Name+": "+taskErr.Error())
		}
		counts[i] = count
	}

	return counts, failures
}

// StartPeriodicWorker runs an immediate cleanup cycle, then repeats on
// interval until the context is cancelled.
func StartPeriodicWorker(ctx context.Context, db *gorm.DB, workerName string, interval time.Duration, tasks []WorkerTask) {
	zap.L().Info("Starting worker",
		zap.String("worker", workerName),
		zap.Duration("interval", interval))

	runWorkerCycle(ctx, db, workerName, tasks)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Worker shutting down", zap.String("worker", workerName))
			return
		case <-ticker.C:
			runWorkerCycle(ctx, db, workerName, tasks)
		}
	}
}

// runWorkerCycle executes a single worker cycle and records it as a
// worker_runs row. Run tracking fails soft: a broken insert is logged and the
// cleanup tasks still execute.
func runWorkerCycle(ctx context.Context, db *gorm.DB, workerName string, tasks []WorkerTask) {
	run := models.WorkerRun{
		WorkerName: workerName,
		Status:     models.WorkerRunStatusRunning,
		StartedAt:  time.Now(),
	}

	trackErr := db.WithContext(ctx).Create(&run).Error
	if trackErr != nil {
		zap.L().Error("Failed to record worker run",
			zap.String("worker", workerName),
			zap.Error(trackErr))
	}

	counts, failures := executeTasks(ctx, tasks)

	total := 0
	fields := []zap.Field{zap.String("worker", workerName)}
	for i, task := range tasks {
		total += counts[i]
		fields = append(fields, zap.Int(task.Name, counts[i]))
	}
	fields = append(fields, zap.Duration("duration", time.Since(run.StartedAt)))

	if trackErr == nil {
		updates := map[string]interface{}{
			"status":          models.WorkerRunStatusCompleted,
			"items_processed": total,
			"ended_at":        time.Now(),
		}
		if len(failures) > 0 {
			updates["status"] = models.WorkerRunStatusFailed
			updates["error"] = strings.Join(failures, "; ")
		}

		err := db.WithContext(ctx).
			Model(&models.WorkerRun{}).
			Where("id = ?", run.ID).
			Updates(updates).Error
		if err != nil {
			zap.L().Error("Failed to finalize worker run",
				zap.String("worker", workerName),
				zap.Error(err))
		}
	}

	zap.L().Info("Worker cycle complete", fields...)
}
