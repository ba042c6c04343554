package main

import (
	"fmt"
	"strconv"
	"time"

	"stylestudioapi/models"
	"stylestudioapi/tasks"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Manage try-on batches",
}

// batchRequeueCmd puts a failed or stuck batch back on the queue. Looks that
// already have a result are skipped by the worker.
var batchRequeueCmd = &cobra.Command{
	Use:   "requeue [batch-id]",
	Short: "Queue a try-on batch again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid batch id %q", args[0])
		}
		cfg, db, _, err := openStore()
		if err != nil {
			return err
		}
		if err := resetBatch(db, uint(batchID)); err != nil {
			return err
		}

		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Broker.Address})
		defer client.Close()
		task, err := tasks.NewTryOnBatchTask(uint(batchID))
		if err != nil {
			return err
		}
		info, err := client.Enqueue(task, tasks.EnqueueOptions()...)
		if err != nil {
			return err
		}
		if err := db.Model(&models.TryOnBatch{}).Where("id = ?", batchID).Update("task_id", info.ID).Error; err != nil {
			return err
		}
		appLog.Info("batch requeued", "batch_id", batchID, "task_id", info.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "batch %d queued as %s\n", batchID, info.ID)
		return nil
	},
}

// resetBatch moves a failed batch back to pending and restarts its stale
// window. Completed and cancelled batches stay as they are.
func resetBatch(db *gorm.DB, batchID uint) error {
	var batch models.TryOnBatch
	if err := db.First(&batch, batchID).Error; err != nil {
		return fmt.Errorf("batch %d: %w", batchID, err)
	}
	switch batch.Status {
	case models.BatchCompleted, models.BatchCancelled:
		return fmt.Errorf("batch %d is %s", batchID, batch.Status)
	}
	return db.Model(&batch).Updates(map[string]interface{}{
		"status":        models.BatchPending,
		"error_message": gorm.Expr("NULL"),
		"updated_at":    time.Now(),
	}).Error
}
