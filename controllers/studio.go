package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"stylestudioapi/config"
	"stylestudioapi/logger"
	"stylestudioapi/models"
	"stylestudioapi/outfits"
	"stylestudioapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StudioController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
	Catalogues services.CatalogueStoreProvider
	Config     *config.Config
	Log        *logger.Logger
}

type PhotoOut struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	MIMEType  string    `json:"mime_type"`
	URL       string    `json:"url"`
	Selected  bool      `json:"selected"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionOut struct {
	Gender        models.Gender                 `json:"gender"`
	SelectedPhoto *PhotoOut                     `json:"selected_photo"`
	Selection     map[models.Category][]ItemOut `json:"selection"`
	SelectedCount int                           `json:"selected_count"`
	LookCount     int                           `json:"look_count"`
	Conflicting   bool                          `json:"conflicting"`
	ItemCounts    map[models.Category]int       `json:"item_counts"`
}

type SelectionToggleOut struct {
	Selected  bool               `json:"selected"`
	Selection models.SelectedIDs `json:"selection"`
	LookCount int                `json:"look_count"`
}

func (controller *StudioController) StudioRoutes(g *echo.Group) {
	g.GET("/session", controller.GetSession)
	g.PUT("/session/gender", controller.SetGender)
	g.POST("/session/selection", controller.ToggleSelection)
	g.PUT("/session/photo", controller.SelectPhoto)
	g.POST("/session/reset", controller.Reset)
	g.POST("/photos", controller.UploadPhoto)
	g.GET("/photos", controller.ListPhotos)
}

func (controller *StudioController) resolver() urlResolver {
	return urlResolver{cache: controller.URLCache, aws: controller.AWSService, bucket: controller.Config.Storage.Bucket, log: controller.Log}
}

// loadSession returns the user's studio session, creating the default one.
func loadSession(db *gorm.DB, userID uint) (models.StudioSession, error) {
	session := models.StudioSession{
		UserAccountID: userID,
		Gender:        models.GenderFemale,
		Selection:     datatypes.NewJSONType(models.SelectedIDs{}),
	}
	err := db.Where("user_account_id = ?", userID).FirstOrCreate(&session).Error
	return session, err
}

func saveSelection(db *gorm.DB, session *models.StudioSession, selection outfits.Selection) error {
	session.Selection = datatypes.NewJSONType(selection.IDs())
	return db.Model(session).Select("selection").Updates(session).Error
}

func (controller *StudioController) GetSession(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	db := currentDB(c)
	ctx := c.Request().Context()

	session, err := loadSession(db, user.ID)
	if err != nil {
		return echo.ErrInternalServerError
	}
	catalogue, err := controller.Catalogues.LoadOrSeed(ctx, user.ID, session.Gender)
	if err != nil {
		controller.Log.Error("failed to load catalogue", "user_account_id", user.ID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to load your catalogue")
	}
	selection := outfits.Resolve(session.Selection.Data(), catalogue)

	out := SessionOut{
		Gender:        session.Gender,
		Selection:     map[models.Category][]ItemOut{},
		SelectedCount: selection.Count(),
		LookCount:     len(outfits.GenerateOutfitCombinations(selection)),
		Conflicting:   selection.Conflicting(),
		ItemCounts:    map[models.Category]int{},
	}
	resolver := controller.resolver()
	for _, category := range models.Categories {
		out.Selection[category] = resolver.items(ctx, category, selection[category])
		out.ItemCounts[category] = len(catalogue[category])
	}
	if session.SelectedPhotoID != nil {
		var photo models.PersonPhoto
		if err := db.Where("id = ? AND user_account_id = ?", *session.SelectedPhotoID, user.ID).Take(&photo).Error; err == nil {
			out.SelectedPhoto = controller.photoOut(c, photo, true)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (controller *StudioController) SetGender(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	var req models.GenderIn
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	db := currentDB(c)
	session, err := loadSession(db, user.ID)
	if err != nil {
		return echo.ErrInternalServerError
	}

	gender := models.Gender(req.Gender)
	if session.Gender == gender {
		return c.JSON(http.StatusOK, echo.Map{"gender": gender, "changed": false})
	}
	// selections reference the other catalogue's items, so they go
	err = db.Model(&session).Updates(map[string]interface{}{
		"gender":    gender,
		"selection": datatypes.NewJSONType(models.SelectedIDs{}),
	}).Error
	if err != nil {
		return echo.ErrInternalServerError
	}
	controller.Log.Debug("gender switched", "user_account_id", user.ID, "gender", gender)
	return c.JSON(http.StatusOK, echo.Map{"gender": gender, "changed": true})
}

func (controller *StudioController) ToggleSelection(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	var req models.SelectionToggleIn
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	db := currentDB(c)
	session, err := loadSession(db, user.ID)
	if err != nil {
		return echo.ErrInternalServerError
	}
	catalogue, err := controller.Catalogues.LoadOrSeed(c.Request().Context(), user.ID, session.Gender)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to load your catalogue")
	}
	var item *models.CatalogueItem
	for i := range catalogue[category] {
		if catalogue[category][i].ID == req.ItemID {
			item = &catalogue[category][i]
			break
		}
	}
	if item == nil {
		return errorJSON(c, http.StatusNotFound, "Style not found in your catalogue")
	}

	selection := outfits.Resolve(session.Selection.Data(), catalogue)
	selected := selection.Toggle(category, *item)
	if err := saveSelection(db, &session, selection); err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, SelectionToggleOut{
		Selected:  selected,
		Selection: selection.IDs(),
		LookCount: len(outfits.GenerateOutfitCombinations(selection)),
	})
}

func (controller *StudioController) SelectPhoto(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	var req models.SelectPhotoIn
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	db := currentDB(c)
	var photo models.PersonPhoto
	if err := db.Where("id = ? AND user_account_id = ?", req.PhotoID, user.ID).Take(&photo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, http.StatusNotFound, "Photo not found")
		}
		return echo.ErrInternalServerError
	}
	session, err := loadSession(db, user.ID)
	if err != nil {
		return echo.ErrInternalServerError
	}
	if err := db.Model(&session).Update("selected_photo_id", photo.ID).Error; err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, controller.photoOut(c, photo, true))
}

// Reset forgets everything the user built in the studio. Stored objects are
// left to the bucket lifecycle rules.
func (controller *StudioController) Reset(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	db := currentDB(c)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_account_id = ?", user.ID).Delete(&models.StudioSession{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_account_id = ?", user.ID).Delete(&models.ClassifyingItem{}).Error; err != nil {
			return err
		}
		// batches keep their photo id for history, so photos referenced by one stay
		return tx.Where("user_account_id = ? AND id NOT IN (?)", user.ID,
			tx.Model(&models.TryOnBatch{}).Select("person_photo_id").Where("user_account_id = ?", user.ID),
		).Delete(&models.PersonPhoto{}).Error
	})
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Studio: %v] reset failed: %w", user.ID, err))
		return errorJSON(c, http.StatusInternalServerError, "Failed to reset the studio, please try again")
	}
	if err := controller.Catalogues.Clear(c.Request().Context(), user.ID); err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to reset the studio, please try again")
	}
	controller.Log.Info("studio reset", "user_account_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "Studio has been reset"})
}

func (controller *StudioController) UploadPhoto(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	maxBytes := controller.Config.Studio.MaxUploadBytes

	var data []byte
	var declared, name string
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		file, err := c.FormFile("file")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "Please attach a photo")
		}
		data, err = readUpload(file, maxBytes)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "Failed to read the photo")
		}
		declared = file.Header.Get(echo.HeaderContentType)
		name = file.Filename
	} else {
		var req models.PhotoDataURLIn
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "Invalid request body")
		}
		if err := c.Validate(req); err != nil {
			return errorJSON(c, http.StatusBadRequest, err.Error())
		}
		var err error
		data, declared, err = services.DecodeDataURL(req.DataURL)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "Invalid photo data")
		}
		name = req.Name
	}

	mimeType, err := services.ValidateImage(data, declared, maxBytes)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, imageErrorMessage(err, maxBytes))
	}
	if strings.TrimSpace(name) == "" {
		name = "photo" + services.ExtensionForMIME(mimeType)
	}

	key := fmt.Sprintf("photos/%d/%s%s", user.ID, uuid.NewString(), services.ExtensionForMIME(mimeType))
	if err := controller.AWSService.UploadObject(c.Request().Context(), controller.Config.Storage.Bucket, key, data, mimeType); err != nil {
		controller.Log.Error("photo upload failed", "user_account_id", user.ID, "error", err)
		sentry.CaptureException(err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to store your photo, please try again")
	}

	db := currentDB(c)
	photo := models.PersonPhoto{UserAccountID: user.ID, ObjectKey: key, MIMEType: mimeType, Name: strings.TrimSpace(name)}
	if err := db.Create(&photo).Error; err != nil {
		return echo.ErrInternalServerError
	}
	session, err := loadSession(db, user.ID)
	if err != nil {
		return echo.ErrInternalServerError
	}
	if err := db.Model(&session).Update("selected_photo_id", photo.ID).Error; err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusCreated, controller.photoOut(c, photo, true))
}

func (controller *StudioController) ListPhotos(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	db := currentDB(c)
	var photos []models.PersonPhoto
	if err := db.Where("user_account_id = ?", user.ID).Order("created_at DESC, id DESC").Find(&photos).Error; err != nil {
		return echo.ErrInternalServerError
	}
	session, err := loadSession(db, user.ID)
	if err != nil {
		return echo.ErrInternalServerError
	}

	keys := make([]string, 0, len(photos))
	for _, photo := range photos {
		keys = append(keys, photo.ObjectKey)
	}
	urls := controller.resolver().keys(c.Request().Context(), keys)
	out := make([]PhotoOut, 0, len(photos))
	for i, photo := range photos {
		out = append(out, PhotoOut{
			ID:        photo.ID,
			Name:      photo.Name,
			MIMEType:  photo.MIMEType,
			URL:       urls[i],
			Selected:  session.SelectedPhotoID != nil && *session.SelectedPhotoID == photo.ID,
			CreatedAt: photo.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"photos": out})
}

func (controller *StudioController) photoOut(c echo.Context, photo models.PersonPhoto, selected bool) *PhotoOut {
	return &PhotoOut{
		ID:        photo.ID,
		Name:      photo.Name,
		MIMEType:  photo.MIMEType,
		URL:       controller.resolver().readURL(c.Request().Context(), photo.ObjectKey),
		Selected:  selected,
		CreatedAt: photo.CreatedAt,
	}
}

// readUpload reads at most maxBytes+1 so oversized files are detected
// without buffering them whole.
func readUpload(header *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if maxBytes <= 0 {
		maxBytes = services.DefaultMaxUploadBytes
	}
	return io.ReadAll(io.LimitReader(file, maxBytes+1))
}

func imageErrorMessage(err error, maxBytes int64) string {
	if errors.Is(err, services.ErrImageTooBig) {
		return fmt.Sprintf("Image is too large. Max size is %dMB.", megabytes(maxBytes))
	}
	return "Please upload a valid image file (PNG, JPG, etc.)."
}

func megabytes(maxBytes int64) int64 {
	if maxBytes <= 0 {
		maxBytes = services.DefaultMaxUploadBytes
	}
	return maxBytes >> 20
}
