package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"stylestudioapi/config"
	"stylestudioapi/logger"
	"stylestudioapi/models"
	"stylestudioapi/outfits"
	"stylestudioapi/services"
	"stylestudioapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MessageSelectPhoto      = "Please select a photo first."
	MessageSelectItem       = "Please select at least one clothing item."
	MessagePlaceholderStyle = "A selected style is a placeholder. Please upload real clothing items to use the try-on feature."
)

type TryOnController struct {
	URLCache   services.URLCacheServiceProvider
	AWSService services.AWSServiceProvider
	Catalogues services.CatalogueStoreProvider
	Config     *config.Config
	Log        *logger.Logger
}

type AttemptOut struct {
	Position int                  `json:"position"`
	Names    string               `json:"names"`
	Items    []models.PlannedItem `json:"items"`
}

type ResultOut struct {
	Position  int    `json:"position"`
	ItemNames string `json:"item_names"`
	URL       string `json:"url"`
}

type TryOnBatchOut struct {
	ID           uint          `json:"id"`
	Status       string        `json:"status"`
	Gender       models.Gender `json:"gender"`
	ErrorMessage *string       `json:"error_message"`
	Duration     *float64      `json:"duration"`
	AttemptCount int           `json:"attempt_count"`
	Attempts     []AttemptOut  `json:"attempts"`
	Results      []ResultOut   `json:"results"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (controller *TryOnController) TryOnRoutes(g *echo.Group) {
	g.POST("", controller.CreateTryOn)
	g.GET("", controller.ListTryOns)
	g.GET("/:id", controller.GetTryOn)
	g.POST("/:id/cancel", controller.CancelTryOn)
}

func (controller *TryOnController) resolver() urlResolver {
	return urlResolver{cache: controller.URLCache, aws: controller.AWSService, bucket: controller.Config.Storage.Bucket, log: controller.Log}
}

func startOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// todayAttemptCount sums the looks requested since midnight, server time.
func todayAttemptCount(db *gorm.DB, userID uint, now time.Time) (int64, error) {
	var total int64
	err := db.Model(&models.TryOnBatch{}).
		Where("user_account_id = ? AND created_at >= ?", userID, startOfDay(now)).
		Select("COALESCE(SUM(attempt_count), 0)").
		Scan(&total).Error
	return total, err
}

// dailyAttemptLimit is the per-user override or the configured default; zero or less is unlimited.
func dailyAttemptLimit(user models.UserAccount, cfg *config.Config) int32 {
	if user.DailyAttemptLimit != nil {
		return *user.DailyAttemptLimit
	}
	if cfg == nil {
		return 0
	}
	return cfg.Studio.DailyAttemptLimit
}

func attemptsOut(attempts []models.PlannedAttempt) []AttemptOut {
	out := make([]AttemptOut, 0, len(attempts))
	for i, attempt := range attempts {
		out = append(out, AttemptOut{Position: i, Names: attempt.Names(), Items: attempt.Items})
	}
	return out
}

func (controller *TryOnController) CreateTryOn(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	enqueuer, ok := c.Get("__asynqclient").(tasks.Enqueuer)
	if !ok || enqueuer == nil {
		return errorJSON(c, http.StatusInternalServerError, "Service is not available, please try again a bit later")
	}
	db := currentDB(c)
	ctx := c.Request().Context()

	session, err := loadSession(db, user.ID)
	if err != nil {
		return echo.ErrInternalServerError
	}
	if session.SelectedPhotoID == nil {
		return errorJSON(c, http.StatusBadRequest, MessageSelectPhoto)
	}
	var photo models.PersonPhoto
	if err := db.Where("id = ? AND user_account_id = ?", *session.SelectedPhotoID, user.ID).Take(&photo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, http.StatusBadRequest, MessageSelectPhoto)
		}
		return echo.ErrInternalServerError
	}

	catalogue, err := controller.Catalogues.LoadOrSeed(ctx, user.ID, session.Gender)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to load your catalogue")
	}
	attempts := outfits.GenerateOutfitCombinations(outfits.Resolve(session.Selection.Data(), catalogue))
	if len(attempts) == 0 {
		return errorJSON(c, http.StatusBadRequest, MessageSelectItem)
	}
	for _, attempt := range attempts {
		if attempt.HasPlaceholder() {
			return errorJSON(c, http.StatusBadRequest, MessagePlaceholderStyle)
		}
	}

	if limit := dailyAttemptLimit(user, controller.Config); limit > 0 {
		used, err := todayAttemptCount(db, user.ID, time.Now())
		if err != nil {
			return echo.ErrInternalServerError
		}
		if used+int64(len(attempts)) > int64(limit) {
			controller.Log.Info("daily limit reached", "user_account_id", user.ID, "used", used, "requested", len(attempts), "limit", limit)
			remaining := int64(limit) - used
			if remaining < 0 {
				remaining = 0
			}
			return errorJSON(c, http.StatusForbidden, fmt.Sprintf("You have reached the limit of %d looks per day (%d left today). Please wait for the next day or select fewer items.", limit, remaining))
		}
	}

	plans := make([]models.PlannedAttempt, 0, len(attempts))
	for _, attempt := range attempts {
		plans = append(plans, attempt.Plan())
	}
	batch := models.TryOnBatch{
		UserAccountID: user.ID,
		Gender:        session.Gender,
		PersonPhotoID: photo.ID,
		Attempts:      datatypes.NewJSONType(plans),
		AttemptCount:  len(plans),
		Status:        models.BatchPending,
	}
	if err := db.Create(&batch).Error; err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to start generation, please try again")
	}

	task, err := tasks.NewTryOnBatchTask(batch.ID)
	if err == nil {
		info, enqueueErr := enqueuer.Enqueue(task, tasks.EnqueueOptions()...)
		if err = enqueueErr; err == nil {
			batch.TaskID = &info.ID
			if saveErr := db.Model(&batch).Update("task_id", info.ID).Error; saveErr != nil {
				controller.Log.Error("failed to save task id", "batch_id", batch.ID, "task_id", info.ID, "error", saveErr)
			}
		}
	}
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[TryOn: %v] enqueue failed: %w", batch.ID, err))
		saveErr := db.Model(&batch).Updates(map[string]interface{}{"status": models.BatchFailed, "error_message": "Could not start generation"}).Error
		if saveErr != nil {
			controller.Log.Error("failed to mark batch failed", "batch_id", batch.ID, "error", saveErr)
		}
		return errorJSON(c, http.StatusInternalServerError, "Sorry, could not start generation, please try again")
	}
	controller.Log.Info("try-on queued", "user_account_id", user.ID, "batch_id", batch.ID, "looks", len(plans), "task_id", *batch.TaskID)

	return c.JSON(http.StatusCreated, TryOnBatchOut{
		ID:           batch.ID,
		Status:       batch.Status,
		Gender:       batch.Gender,
		AttemptCount: batch.AttemptCount,
		Attempts:     attemptsOut(plans),
		Results:      []ResultOut{},
		CreatedAt:    batch.CreatedAt,
	})
}

func (controller *TryOnController) findBatch(c echo.Context, user models.UserAccount) (*models.TryOnBatch, error) {
	id, err := pathUint(c, "id")
	if err != nil {
		return nil, errorJSON(c, http.StatusBadRequest, "Invalid id")
	}
	var batch models.TryOnBatch
	err = currentDB(c).
		Preload("Results", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id = ? AND user_account_id = ?", id, user.ID).
		Take(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errorJSON(c, http.StatusNotFound, "Generation not found")
	}
	if err != nil {
		return nil, echo.ErrInternalServerError
	}
	return &batch, nil
}

func (controller *TryOnController) batchOut(c echo.Context, batch models.TryOnBatch) TryOnBatchOut {
	keys := make([]string, 0, len(batch.Results))
	for _, result := range batch.Results {
		keys = append(keys, result.ObjectKey)
	}
	urls := controller.resolver().keys(c.Request().Context(), keys)
	results := make([]ResultOut, 0, len(batch.Results))
	for i, result := range batch.Results {
		results = append(results, ResultOut{Position: result.Position, ItemNames: result.ItemNames, URL: urls[i]})
	}
	return TryOnBatchOut{
		ID:           batch.ID,
		Status:       batch.Status,
		Gender:       batch.Gender,
		ErrorMessage: batch.ErrorMessage,
		Duration:     batch.Duration,
		AttemptCount: batch.AttemptCount,
		Attempts:     attemptsOut(batch.Attempts.Data()),
		Results:      results,
		CreatedAt:    batch.CreatedAt,
	}
}

func (controller *TryOnController) GetTryOn(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	batch, err := controller.findBatch(c, user)
	if batch == nil {
		return err
	}
	return c.JSON(http.StatusOK, controller.batchOut(c, *batch))
}

func (controller *TryOnController) ListTryOns(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	var batches []models.TryOnBatch
	err := currentDB(c).
		Preload("Results", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("user_account_id = ?", user.ID).
		Order("id DESC").
		Limit(20).
		Find(&batches).Error
	if err != nil {
		return echo.ErrInternalServerError
	}
	out := make([]TryOnBatchOut, 0, len(batches))
	for _, batch := range batches {
		out = append(out, controller.batchOut(c, batch))
	}
	return c.JSON(http.StatusOK, echo.Map{"batches": out})
}

// CancelTryOn flips the batch to cancelled; the worker sees it before the next
// look. A running task is also interrupted through the inspector.
func (controller *TryOnController) CancelTryOn(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	batch, err := controller.findBatch(c, user)
	if batch == nil {
		return err
	}
	if batch.IsTerminal() {
		return errorJSON(c, http.StatusConflict, "This generation has already finished")
	}

	result := currentDB(c).Model(&models.TryOnBatch{}).
		Where("id = ? AND status IN ?", batch.ID, []string{models.BatchPending, models.BatchRunning}).
		Update("status", models.BatchCancelled)
	if result.Error != nil {
		return echo.ErrInternalServerError
	}
	if result.RowsAffected == 0 {
		return errorJSON(c, http.StatusConflict, "This generation has already finished")
	}

	if canceller, ok := c.Get("__asynqinspector").(tasks.Canceller); ok && canceller != nil && batch.TaskID != nil && batch.Status == models.BatchRunning {
		if err := canceller.CancelProcessing(*batch.TaskID); err != nil {
			controller.Log.Warn("failed to interrupt running task", "batch_id", batch.ID, "task_id", *batch.TaskID, "error", err)
		}
	}
	controller.Log.Info("try-on cancelled", "user_account_id", user.ID, "batch_id", batch.ID)
	batch.Status = models.BatchCancelled
	return c.JSON(http.StatusOK, controller.batchOut(c, *batch))
}
