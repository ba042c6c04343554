package tasks

import (
	"context"
	"time"

	"stylestudioapi/models"

	"github.com/hibiken/asynq"
)

const (
	MessageBatchTimedOut    = "Generation timed out. Please try again."
	MessageClassifyTimedOut = "Classification timed out. Please upload the item again."

	DefaultStaleAfter = 30 * time.Minute
)

func (w *Worker) HandleStaleBatchesTask(ctx context.Context, t *asynq.Task) error {
	_, _, err := w.FailStaleWork(ctx, time.Now())
	return err
}

// FailStaleWork marks batches and uploads that went longer than StaleAfter
// without progress as failed, so clients polling them stop waiting. A running
// batch is touched after every stored look.
func (w *Worker) FailStaleWork(ctx context.Context, now time.Time) (int64, int64, error) {
	staleAfter := w.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	cutoff := now.Add(-staleAfter)
	db := w.DB.WithContext(ctx)

	batches := db.Model(&models.TryOnBatch{}).
		Where("status IN ? AND updated_at < ?", []string{models.BatchPending, models.BatchRunning}, cutoff).
		Updates(map[string]interface{}{"status": models.BatchFailed, "error_message": MessageBatchTimedOut})
	if batches.Error != nil {
		return 0, 0, batches.Error
	}

	uploads := db.Model(&models.ClassifyingItem{}).
		Where("status = ? AND updated_at < ?", models.ClassifyingPending, cutoff).
		Updates(map[string]interface{}{"status": models.ClassifyingFailed, "error_message": MessageClassifyTimedOut})
	if uploads.Error != nil {
		return batches.RowsAffected, 0, uploads.Error
	}

	if batches.RowsAffected > 0 || uploads.RowsAffected > 0 {
		w.log().Info("stale work failed", "batches", batches.RowsAffected, "uploads", uploads.RowsAffected)
	}
	return batches.RowsAffected, uploads.RowsAffected, nil
}
