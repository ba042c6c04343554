package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stylestudioapi/models"
	"stylestudioapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

const (
	MessageItemMissing     = "A selected style is no longer in your catalogue. Please update your selection."
	MessagePlaceholderItem = "A selected style is a placeholder. Please upload real clothing items to use the try-on feature."
	MessagePhotoUnreadable = "Failed to read your photo. Please select it again and retry."
	MessageStorageFailed   = "Failed to store the generated look. Please try again."
)

// userFacingError carries a message meant for the user next to its cause.
type userFacingError struct {
	message string
	cause   error
}

func (e *userFacingError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return fmt.Sprintf("%s: %v", e.message, e.cause)
}

func (e *userFacingError) Unwrap() error {
	return e.cause
}

func failureMessage(err error) string {
	var userErr *userFacingError
	if errors.As(err, &userErr) {
		return userErr.message
	}
	return services.UserMessage(err)
}

func TryOnFailureMessage(names string, err error) string {
	return fmt.Sprintf("Failed to generate look for: %s. Reason: %s", names, failureMessage(err))
}

// TryOnObjectKey is where a generated look is stored.
func TryOnObjectKey(userID, batchID uint, position int, mimeType string) string {
	ext := services.ExtensionForMIME(mimeType)
	if ext == "" {
		ext = ".png"
	}
	return fmt.Sprintf("tryons/%d/%d/%d%s", userID, batchID, position, ext)
}

func batchCancelToken(db *gorm.DB, batchID uint) CancelToken {
	return CancelFunc(func(ctx context.Context) (bool, error) {
		var batch models.TryOnBatch
		if err := db.WithContext(ctx).Select("id", "status").First(&batch, batchID).Error; err != nil {
			return false, err
		}
		return batch.Status == models.BatchCancelled, nil
	})
}

func (w *Worker) HandleTryOnBatchTask(ctx context.Context, t *asynq.Task) error {
	var payload TryOnBatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid try-on payload: %v: %w", err, asynq.SkipRetry)
	}
	return w.ProcessTryOnBatch(ctx, payload.BatchID)
}

// ProcessTryOnBatch generates every planned look of the batch in order. A
// redelivered batch resumes after the looks it already stored.
func (w *Worker) ProcessTryOnBatch(ctx context.Context, batchID uint) error {
	log := w.log().With("batch_id", batchID)
	db := w.DB.WithContext(ctx)

	var batch models.TryOnBatch
	if err := db.Preload("PersonPhoto").Preload("Results").First(&batch, batchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("try-on batch %d not found: %w", batchID, asynq.SkipRetry)
		}
		return err
	}
	if batch.IsTerminal() {
		log.Info("batch already finished, skipping", "status", batch.Status)
		return nil
	}

	started := db.Model(&models.TryOnBatch{}).
		Where("id = ? AND status IN ?", batch.ID, []string{models.BatchPending, models.BatchRunning}).
		Update("status", models.BatchRunning)
	if started.Error != nil {
		return started.Error
	}
	if started.RowsAffected == 0 {
		log.Info("batch changed before start, skipping")
		return nil
	}

	start := time.Now()
	attempts := batch.Attempts.Data()
	done := make(map[int]bool, len(batch.Results))
	for _, result := range batch.Results {
		done[result.Position] = true
	}
	pending := make([]int, 0, len(attempts))
	for i := range attempts {
		if !done[i] {
			pending = append(pending, i)
		}
	}

	personData, err := w.Storage.DownloadObject(ctx, w.Bucket, batch.PersonPhoto.ObjectKey)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[TryOn: %v] person photo download failed: %w", batch.ID, err))
		return w.saveBatchFail(ctx, batch, MessagePhotoUnreadable, time.Since(start))
	}
	person := models.ImageRef{Data: personData, MIMEType: batch.PersonPhoto.MIMEType, Name: batch.PersonPhoto.Name}

	catalogue, err := w.Catalogues.LoadOrSeed(ctx, batch.UserAccountID, batch.Gender)
	if err != nil {
		return err
	}
	resolver := &itemResolver{worker: w, catalogue: catalogue, cache: map[string][]byte{}}

	var usage services.LLMResponse
	sequencer := Sequencer{
		Delay:       w.CallDelay,
		StopOnError: true,
		Sleep:       w.Sleep,
		Token:       batchCancelToken(w.DB, batch.ID),
	}
	_, runErr := sequencer.Run(ctx, len(pending), func(ctx context.Context, step int) error {
		i := pending[step]
		items, err := resolver.resolve(ctx, attempts[i])
		if err != nil {
			return err
		}
		response, err := w.AI.GenerateTryOn(ctx, person, items, batch.Gender)
		if err != nil {
			return err
		}

		key := TryOnObjectKey(batch.UserAccountID, batch.ID, i, response.ImageMIMEType)
		if err := w.Storage.UploadObject(ctx, w.Bucket, key, response.Images[0], response.ImageMIMEType); err != nil {
			return &userFacingError{message: MessageStorageFailed, cause: err}
		}
		result := models.TryOnResult{
			TryOnBatchID:        batch.ID,
			Position:            i,
			ObjectKey:           key,
			ItemNames:           attempts[i].Names(),
			LLMTotalTokenCount:  response.TotalTokenCount,
			LLMOutputTokenCount: response.OutputTokenCount,
		}
		if err := w.DB.WithContext(ctx).Create(&result).Error; err != nil {
			return &userFacingError{message: MessageStorageFailed, cause: err}
		}
		// the stale sweep judges batches by updated_at
		touched := w.DB.WithContext(ctx).Model(&models.TryOnBatch{}).Where("id = ?", batch.ID).UpdateColumn("updated_at", time.Now())
		if touched.Error != nil {
			log.Warn("failed to record batch progress", "position", i, "error", touched.Error)
		}

		usage.Model = response.Model
		usage.InputTokenCount += response.InputTokenCount
		usage.OutputTokenCount += response.OutputTokenCount
		usage.ThoughtsTokenCount += response.ThoughtsTokenCount
		usage.TotalTokenCount += response.TotalTokenCount
		log.Debug("look generated", "position", i, "llm_total_token_count", response.TotalTokenCount)
		return nil
	})
	elapsed := time.Since(start)
	if err := ctx.Err(); err != nil {
		return err
	}

	var stepErr *StepError
	switch {
	case runErr == nil:
		return w.saveBatchCompleted(ctx, batch, usage, elapsed, len(attempts))
	case errors.Is(runErr, ErrBatchCancelled):
		log.Info("batch cancelled by user")
		err := w.DB.WithContext(ctx).Model(&models.TryOnBatch{}).Where("id = ?", batch.ID).Updates(batchUsage(usage, elapsed)).Error
		if err != nil {
			log.Error("failed to save usage of cancelled batch", "error", err)
			sentry.CaptureException(fmt.Errorf("[TryOn: %v] error on saving cancelled batch usage: %w", batch.ID, err))
		}
		return nil
	case errors.As(runErr, &stepErr):
		position := pending[stepErr.Index]
		message := TryOnFailureMessage(attempts[position].Names(), stepErr.Err)
		log.Warn("look failed", "position", position, "error", stepErr.Err)
		var aiErr *services.AIError
		if !errors.As(stepErr.Err, &aiErr) || aiErr.Message == services.MessageAIUnexpected {
			sentry.CaptureException(fmt.Errorf("[TryOn: %v] look %d failed: %w", batch.ID, position, stepErr.Err))
		}
		updates := batchUsage(usage, elapsed)
		updates["status"] = models.BatchFailed
		updates["error_message"] = message
		return w.DB.WithContext(ctx).Model(&models.TryOnBatch{}).
			Where("id = ? AND status = ?", batch.ID, models.BatchRunning).
			Updates(updates).Error
	default:
		// context or database trouble: leave the batch running so a retry resumes it
		return runErr
	}
}

func batchUsage(usage services.LLMResponse, elapsed time.Duration) map[string]interface{} {
	updates := map[string]interface{}{
		"duration":                 elapsed.Seconds(),
		"llm_input_token_count":    gorm.Expr("llm_input_token_count + ?", usage.InputTokenCount),
		"llm_output_token_count":   gorm.Expr("llm_output_token_count + ?", usage.OutputTokenCount),
		"llm_thoughts_token_count": gorm.Expr("llm_thoughts_token_count + ?", usage.ThoughtsTokenCount),
		"llm_total_token_count":    gorm.Expr("llm_total_token_count + ?", usage.TotalTokenCount),
	}
	if usage.Model != "" {
		updates["llm_model"] = usage.Model
	}
	return updates
}

func (w *Worker) saveBatchCompleted(ctx context.Context, batch models.TryOnBatch, usage services.LLMResponse, elapsed time.Duration, looks int) error {
	updates := batchUsage(usage, elapsed)
	updates["status"] = models.BatchCompleted
	updates["error_message"] = nil
	saved := w.DB.WithContext(ctx).Model(&models.TryOnBatch{}).
		Where("id = ? AND status = ?", batch.ID, models.BatchRunning).
		Updates(updates)
	if saved.Error != nil {
		sentry.CaptureException(fmt.Errorf("[TryOn: %v] error on saving completed batch: %w", batch.ID, saved.Error))
		return saved.Error
	}
	if saved.RowsAffected == 0 {
		return nil
	}
	w.log().Info("batch completed", "batch_id", batch.ID, "looks", looks, "duration", elapsed.Seconds())

	if w.Notifier != nil {
		err := w.Notifier.SendNotification(ctx, batch.UserAccountID, "Your new looks are ready",
			fmt.Sprintf("%d looks generated in %.1fs", looks, elapsed.Seconds()),
			map[string]string{"batch_id": fmt.Sprintf("%d", batch.ID), "type": "tryon_completed"})
		if err != nil {
			w.log().Warn("completion push failed", "batch_id", batch.ID, "error", err)
		}
	}
	return nil
}

func (w *Worker) saveBatchFail(ctx context.Context, batch models.TryOnBatch, message string, elapsed time.Duration) error {
	err := w.DB.WithContext(ctx).Model(&models.TryOnBatch{}).
		Where("id = ? AND status IN ?", batch.ID, []string{models.BatchPending, models.BatchRunning}).
		Updates(map[string]interface{}{
			"status":        models.BatchFailed,
			"error_message": message,
			"duration":      elapsed.Seconds(),
		}).Error
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[TryOn: %v] error on saving failed status: %w", batch.ID, err))
	}
	return err
}

// itemResolver turns planned items back into images, downloading stored
// garments once per batch.
type itemResolver struct {
	worker    *Worker
	catalogue models.Catalogue
	cache     map[string][]byte
}

func (r *itemResolver) resolve(ctx context.Context, attempt models.PlannedAttempt) ([]services.TryOnItem, error) {
	items := make([]services.TryOnItem, 0, len(attempt.Items))
	for _, planned := range attempt.Items {
		item, _, ok := r.catalogue.Find(planned.ID)
		if !ok {
			return nil, &userFacingError{message: MessageItemMissing}
		}
		image := item.Image
		switch {
		case image.IsPlaceholder():
			return nil, &userFacingError{message: MessagePlaceholderItem}
		case len(image.Data) == 0:
			data, cached := r.cache[image.URL]
			if !cached {
				var err error
				data, err = r.worker.Storage.DownloadObject(ctx, r.worker.Bucket, image.URL)
				if err != nil {
					return nil, &userFacingError{message: MessageItemMissing, cause: err}
				}
				r.cache[image.URL] = data
			}
			image.Data = data
		}
		items = append(items, services.TryOnItem{Name: planned.Name, Category: planned.Category, Image: image})
	}
	return items, nil
}
