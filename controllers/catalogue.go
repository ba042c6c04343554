package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"stylestudioapi/config"
	"stylestudioapi/languageutil"
	"stylestudioapi/logger"
	"stylestudioapi/models"
	"stylestudioapi/services"
	"stylestudioapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const (
	maxFilesPerUpload = 20

	MessageNoValidImages = "No valid image files found in the selection."
)

type CatalogueController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
	Catalogues services.CatalogueStoreProvider
	Config     *config.Config
	Log        *logger.Logger
}

type CategoryOut struct {
	Category models.Category `json:"category"`
	Title    string          `json:"title"`
	Count    int             `json:"count"`
	Items    []ItemOut       `json:"items"`
}

type CatalogueOut struct {
	Gender     models.Gender `json:"gender"`
	Categories []CategoryOut `json:"categories"`
}

type ClassifyingOut struct {
	ID        uint          `json:"id"`
	TempID    string        `json:"temp_id"`
	Name      string        `json:"name"`
	Gender    models.Gender `json:"gender"`
	Status    string        `json:"status"`
	Error     *string       `json:"error"`
	URL       string        `json:"url"`
	CreatedAt string        `json:"created_at"`
}

type StylesUploadOut struct {
	Accepted []ClassifyingOut `json:"accepted"`
	Error    *string          `json:"error"`
	TaskID   string           `json:"task_id,omitempty"`
}

func (controller *CatalogueController) CatalogueRoutes(g *echo.Group) {
	g.GET("", controller.GetCatalogue)
	g.POST("/styles", controller.UploadStyles)
	g.GET("/classifying", controller.ListClassifying)
	g.DELETE("/classifying/:id", controller.DismissClassifying)
}

func (controller *CatalogueController) resolver() urlResolver {
	return urlResolver{cache: controller.URLCache, aws: controller.AWSService, bucket: controller.Config.Storage.Bucket, log: controller.Log}
}

func (controller *CatalogueController) GetCatalogue(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	gender := c.Get("gender").(models.Gender)
	ctx := c.Request().Context()

	catalogue, err := controller.Catalogues.LoadOrSeed(ctx, user.ID, gender)
	if err != nil {
		controller.Log.Error("failed to load catalogue", "user_account_id", user.ID, "gender", gender, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to load your catalogue")
	}

	resolver := controller.resolver()
	out := CatalogueOut{Gender: gender, Categories: make([]CategoryOut, 0, len(models.Categories))}
	for _, category := range models.Categories {
		out.Categories = append(out.Categories, CategoryOut{
			Category: category,
			Title:    category.Title(),
			Count:    len(catalogue[category]),
			Items:    resolver.items(ctx, category, catalogue[category]),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// UploadStyles stores every acceptable image and queues one classification
// batch for them. Non-images are dropped quietly unless nothing is left.
func (controller *CatalogueController) UploadStyles(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	gender := c.Get("gender").(models.Gender)
	enqueuer, ok := c.Get("__asynqclient").(tasks.Enqueuer)
	if !ok || enqueuer == nil {
		return errorJSON(c, http.StatusInternalServerError, "Service is not available, please try again a bit later")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "Please attach at least one image")
	}
	files := append(form.File["files[]"], form.File["files"]...)
	if len(files) == 0 {
		return errorJSON(c, http.StatusBadRequest, "Please attach at least one image")
	}
	if len(files) > maxFilesPerUpload {
		return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("You can upload up to %d images at once.", maxFilesPerUpload))
	}

	maxBytes := controller.Config.Studio.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = services.DefaultMaxUploadBytes
	}
	ctx := c.Request().Context()
	db := currentDB(c)

	images, oversized := 0, 0
	var created []models.ClassifyingItem
	for _, file := range files {
		data, err := readUpload(file, maxBytes)
		if err != nil {
			controller.Log.Warn("unreadable upload", "user_account_id", user.ID, "file", file.Filename, "error", err)
			continue
		}
		mimeType, err := services.DetectImageMIME(data, file.Header.Get(echo.HeaderContentType))
		if err != nil {
			continue
		}
		images++
		if int64(len(data)) > maxBytes {
			oversized++
			continue
		}

		tempID := uuid.NewString()
		key := fmt.Sprintf("styles/%d/%s%s", user.ID, tempID, services.ExtensionForMIME(mimeType))
		if err := controller.AWSService.UploadObject(ctx, controller.Config.Storage.Bucket, key, data, mimeType); err != nil {
			controller.Log.Error("style upload failed", "user_account_id", user.ID, "error", err)
			sentry.CaptureException(err)
			return errorJSON(c, http.StatusInternalServerError, "Failed to store your images, please try again")
		}
		item := models.ClassifyingItem{
			UserAccountID: user.ID,
			Gender:        gender,
			TempID:        tempID,
			Name:          languageutil.ItemNameFromFileName(file.Filename),
			ObjectKey:     key,
			MIMEType:      mimeType,
			Status:        models.ClassifyingPending,
		}
		if err := db.Create(&item).Error; err != nil {
			return echo.ErrInternalServerError
		}
		created = append(created, item)
	}

	if images == 0 {
		return errorJSON(c, http.StatusBadRequest, MessageNoValidImages)
	}
	var rejection *string
	if oversized > 0 {
		rejection = services.StrPointer(fmt.Sprintf("%d image(s) exceeded the %dMB size limit and were not added.", oversized, megabytes(maxBytes)))
	}
	if len(created) == 0 {
		return errorJSON(c, http.StatusBadRequest, *rejection)
	}

	ids := make([]uint, 0, len(created))
	for _, item := range created {
		ids = append(ids, item.ID)
	}
	task, err := tasks.NewClassifyBatchTask(user.ID, gender, ids)
	if err != nil {
		sentry.CaptureException(err)
		return errorJSON(c, http.StatusInternalServerError, "Sorry, could not process your images, please try again")
	}
	info, err := enqueuer.Enqueue(task, tasks.EnqueueOptions()...)
	if err != nil {
		sentry.CaptureException(err)
		db.Model(&models.ClassifyingItem{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"status":        models.ClassifyingFailed,
			"error_message": "Sorry, could not process this image, please upload it again",
		})
		return errorJSON(c, http.StatusInternalServerError, "Sorry, could not process your images, please try again")
	}
	controller.Log.Info("classification queued", "user_account_id", user.ID, "items", len(ids), "task_id", info.ID)

	resolver := controller.resolver()
	out := StylesUploadOut{Accepted: make([]ClassifyingOut, 0, len(created)), Error: rejection, TaskID: info.ID}
	for _, item := range created {
		out.Accepted = append(out.Accepted, classifyingOut(item, resolver.readURL(ctx, item.ObjectKey)))
	}
	return c.JSON(http.StatusAccepted, out)
}

func classifyingOut(item models.ClassifyingItem, url string) ClassifyingOut {
	return ClassifyingOut{
		ID:        item.ID,
		TempID:    item.TempID,
		Name:      item.Name,
		Gender:    item.Gender,
		Status:    item.Status,
		Error:     item.ErrorMessage,
		URL:       url,
		CreatedAt: item.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (controller *CatalogueController) ListClassifying(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	gender := c.Get("gender").(models.Gender)

	var items []models.ClassifyingItem
	err := currentDB(c).Where("user_account_id = ? AND gender = ?", user.ID, gender).Order("id").Find(&items).Error
	if err != nil {
		return echo.ErrInternalServerError
	}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.ObjectKey)
	}
	urls := controller.resolver().keys(c.Request().Context(), keys)
	out := make([]ClassifyingOut, 0, len(items))
	for i, item := range items {
		out = append(out, classifyingOut(item, urls[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// DismissClassifying removes a failed upload. Pending ones belong to the worker.
func (controller *CatalogueController) DismissClassifying(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	id, err := pathUint(c, "id")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid id")
	}
	db := currentDB(c)
	var item models.ClassifyingItem
	if err := db.Where("id = ? AND user_account_id = ?", id, user.ID).Take(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, http.StatusNotFound, "Upload not found")
		}
		return echo.ErrInternalServerError
	}
	if item.Status != models.ClassifyingFailed {
		return errorJSON(c, http.StatusConflict, "This image is still being classified")
	}
	if err := db.Delete(&item).Error; err != nil {
		return echo.ErrInternalServerError
	}
	return c.NoContent(http.StatusNoContent)
}
