package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"stylestudioapi/models"
	"stylestudioapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
)

const MessageUploadUnreadable = "Failed to read the uploaded image. Please upload it again."

func (w *Worker) HandleClassifyBatchTask(ctx context.Context, t *asynq.Task) error {
	var payload ClassifyBatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid classify payload: %v: %w", err, asynq.SkipRetry)
	}
	return w.ProcessClassifyBatch(ctx, payload)
}

// ProcessClassifyBatch classifies the pending uploads one by one. A classified
// upload moves into the catalogue and its row is removed; a failed one stays
// behind marked failed so the user can see why and remove it.
func (w *Worker) ProcessClassifyBatch(ctx context.Context, payload ClassifyBatchPayload) error {
	log := w.log().With("user_account_id", payload.UserID)
	if len(payload.ItemIDs) == 0 {
		return nil
	}

	var items []models.ClassifyingItem
	err := w.DB.WithContext(ctx).
		Where("user_account_id = ? AND id IN ? AND status = ?", payload.UserID, payload.ItemIDs, models.ClassifyingPending).
		Order("id").
		Find(&items).Error
	if err != nil {
		return err
	}
	if len(items) == 0 {
		log.Info("nothing left to classify")
		return nil
	}

	sequencer := Sequencer{Delay: w.ClassifyDelay, Sleep: w.Sleep}
	report, runErr := sequencer.Run(ctx, len(items), func(ctx context.Context, i int) error {
		item := items[i]
		data, err := w.Storage.DownloadObject(ctx, w.Bucket, item.ObjectKey)
		if err != nil {
			return w.saveClassifyFail(ctx, item, MessageUploadUnreadable, err)
		}
		category, err := w.AI.ClassifyClothing(ctx, data, item.MIMEType)
		if err != nil {
			return w.saveClassifyFail(ctx, item, services.UserMessage(err), err)
		}

		gender := item.Gender
		if gender == "" {
			gender = payload.Gender
		}
		catalogueItem := models.CatalogueItem{
			ID:   item.TempID,
			Name: item.Name,
			Image: models.ImageRef{
				MIMEType: item.MIMEType,
				URL:      item.ObjectKey,
				Name:     item.Name,
			},
		}
		if err := w.Catalogues.AddItem(ctx, item.UserAccountID, gender, category, catalogueItem); err != nil {
			return w.saveClassifyFail(ctx, item, MessageStorageFailed, err)
		}
		if err := w.DB.WithContext(ctx).Delete(&models.ClassifyingItem{}, item.ID).Error; err != nil {
			log.Error("classified item left behind", "classifying_item_id", item.ID, "error", err)
		}
		log.Debug("item classified", "temp_id", item.TempID, "category", category)
		return nil
	})
	log.Info("classification batch finished",
		"classified", len(report.Completed),
		"failed", len(report.Failed),
		"duration", report.Elapsed.Seconds())
	return runErr
}

func (w *Worker) saveClassifyFail(ctx context.Context, item models.ClassifyingItem, message string, cause error) error {
	w.log().Warn("classification failed", "temp_id", item.TempID, "error", cause)
	var aiErr *services.AIError
	if !errors.As(cause, &aiErr) || aiErr.Message == services.MessageAIUnexpected {
		sentry.CaptureException(fmt.Errorf("[Classify: %v] %w", item.TempID, cause))
	}
	err := w.DB.WithContext(ctx).Model(&models.ClassifyingItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{"status": models.ClassifyingFailed, "error_message": message}).Error
	if err != nil {
		w.log().Error("failed to mark classification failed", "temp_id", item.TempID, "error", err)
	}
	return cause
}
