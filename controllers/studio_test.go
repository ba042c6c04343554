package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"stylestudioapi/models"
	"stylestudioapi/services"
	"stylestudioapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func (f *apiFixture) toggle(t *testing.T, category models.Category, itemID string) SelectionToggleOut {
	t.Helper()
	rec := f.authJSON(http.MethodPost, "/studio/session/selection", models.SelectionToggleIn{Category: string(category), ItemID: itemID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out SelectionToggleOut
	decode(t, rec, &out)
	return out
}

func (f *apiFixture) photo(t *testing.T, user *models.UserAccount) models.PersonPhoto {
	t.Helper()
	photo := models.PersonPhoto{UserAccountID: user.ID, ObjectKey: fmt.Sprintf("photos/%d/%d.png", user.ID, len(f.aws.Objects)), MIMEType: "image/png", Name: "me.png"}
	require.NoError(t, f.db.Create(&photo).Error)
	f.aws.Objects[photo.ObjectKey] = test.PNG
	return photo
}

func TestGetSessionDefaults(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.authJSON(http.MethodGet, "/studio/session", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out SessionOut
	decode(t, rec, &out)
	assert.Equal(t, models.GenderFemale, out.Gender)
	assert.Nil(t, out.SelectedPhoto)
	assert.Zero(t, out.SelectedCount)
	assert.Zero(t, out.LookCount)
	assert.Equal(t, 3, out.ItemCounts[models.CategoryTops])
	assert.Equal(t, 0, out.ItemCounts[models.CategoryHeadwear])
	assert.Len(t, out.Selection, len(models.Categories))

	var sessions int64
	f.db.Model(&models.StudioSession{}).Where("user_account_id = ?", f.user.ID).Count(&sessions)
	assert.EqualValues(t, 1, sessions)
}

func TestToggleSelection(t *testing.T) {
	f := newAPIFixture(t)

	out := f.toggle(t, models.CategoryTops, "f_top_1")
	assert.True(t, out.Selected)
	assert.Equal(t, []string{"f_top_1"}, out.Selection[models.CategoryTops])
	assert.Equal(t, 1, out.LookCount)

	f.toggle(t, models.CategoryBottoms, "f_bottom_1")
	out = f.toggle(t, models.CategoryBottoms, "f_bottom_2")
	assert.Equal(t, 2, out.LookCount)

	out = f.toggle(t, models.CategoryOutfits, "f_outfit_1")
	assert.True(t, out.Selected)
	assert.Empty(t, out.Selection[models.CategoryTops])
	assert.Empty(t, out.Selection[models.CategoryBottoms])
	assert.Equal(t, 1, out.LookCount)

	out = f.toggle(t, models.CategoryOutfits, "f_outfit_1")
	assert.False(t, out.Selected)
	assert.Zero(t, out.LookCount)

	rec := f.authJSON(http.MethodGet, "/studio/session", nil)
	var session SessionOut
	decode(t, rec, &session)
	assert.Zero(t, session.SelectedCount)
}

func TestToggleSelectionInvalid(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.authJSON(http.MethodPost, "/studio/session/selection", models.SelectionToggleIn{Category: "tops", ItemID: "m_top_1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Style not found in your catalogue", errorOf(t, rec))

	rec = f.authJSON(http.MethodPost, "/studio/session/selection", models.SelectionToggleIn{Category: "dresses", ItemID: "f_top_1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.authJSON(http.MethodPost, "/studio/session/selection", models.SelectionToggleIn{Category: "bottoms", ItemID: "f_top_1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetGenderClearsSelection(t *testing.T) {
	f := newAPIFixture(t)
	f.toggle(t, models.CategoryTops, "f_top_1")

	rec := f.authJSON(http.MethodPut, "/studio/session/gender", models.GenderIn{Gender: "female"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"gender":"female","changed":false}`, rec.Body.String())

	rec = f.authJSON(http.MethodPut, "/studio/session/gender", models.GenderIn{Gender: "male"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"gender":"male","changed":true}`, rec.Body.String())

	rec = f.authJSON(http.MethodGet, "/studio/session", nil)
	var session SessionOut
	decode(t, rec, &session)
	assert.Equal(t, models.GenderMale, session.Gender)
	assert.Zero(t, session.SelectedCount)
	assert.Equal(t, 1, session.ItemCounts[models.CategoryHeadwear])

	rec = f.authJSON(http.MethodPut, "/studio/session/gender", models.GenderIn{Gender: "other"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadPhotoMultipart(t *testing.T) {
	f := newAPIFixture(t)

	req := test.NewMultipartAuthRequest(http.MethodPost, "/studio/photos", f.pk(), []test.UploadFile{
		{Field: "file", Name: "selfie.png", ContentType: "image/png", Data: test.PNG},
	})
	rec := f.serve(req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out PhotoOut
	decode(t, rec, &out)
	assert.Equal(t, "selfie.png", out.Name)
	assert.Equal(t, "image/png", out.MIMEType)
	assert.True(t, out.Selected)

	var photo models.PersonPhoto
	require.NoError(t, f.db.First(&photo, out.ID).Error)
	assert.True(t, strings.HasPrefix(photo.ObjectKey, fmt.Sprintf("photos/%d/", f.user.ID)))
	assert.True(t, strings.HasSuffix(photo.ObjectKey, ".png"))
	assert.Equal(t, test.PNG, f.aws.Objects[photo.ObjectKey])
	assert.Equal(t, "https://cdn.example.com/"+photo.ObjectKey, out.URL)

	session, err := loadSession(f.db, f.user.ID)
	require.NoError(t, err)
	require.NotNil(t, session.SelectedPhotoID)
	assert.Equal(t, photo.ID, *session.SelectedPhotoID)
}

func TestUploadPhotoDataURL(t *testing.T) {
	f := newAPIFixture(t)

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(test.PNG)
	rec := f.authJSON(http.MethodPost, "/studio/photos", models.PhotoDataURLIn{DataURL: dataURL})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out PhotoOut
	decode(t, rec, &out)
	assert.Equal(t, "photo.png", out.Name)
	assert.Len(t, f.aws.Objects, 1)

	rec = f.authJSON(http.MethodPost, "/studio/photos", models.PhotoDataURLIn{DataURL: "data:image/png,abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadPhotoRejected(t *testing.T) {
	f := newAPIFixture(t, func(deps *Dependencies) {
		deps.Config.Studio.MaxUploadBytes = 1 << 20
	})

	req := test.NewMultipartAuthRequest(http.MethodPost, "/studio/photos", f.pk(), []test.UploadFile{
		{Field: "file", Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello there")},
	})
	rec := f.serve(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please upload a valid image file (PNG, JPG, etc.).", errorOf(t, rec))

	big := append(append([]byte{}, test.PNG...), bytes.Repeat([]byte{0}, 1<<20)...)
	req = test.NewMultipartAuthRequest(http.MethodPost, "/studio/photos", f.pk(), []test.UploadFile{
		{Field: "file", Name: "big.png", ContentType: "image/png", Data: big},
	})
	rec = f.serve(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Image is too large. Max size is 1MB.", errorOf(t, rec))

	f.aws.FailUploads = true
	req = test.NewMultipartAuthRequest(http.MethodPost, "/studio/photos", f.pk(), []test.UploadFile{
		{Field: "file", Name: "ok.png", ContentType: "image/png", Data: test.PNG},
	})
	rec = f.serve(req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var photos int64
	f.db.Model(&models.PersonPhoto{}).Count(&photos)
	assert.Zero(t, photos)
}

func TestListAndSelectPhotos(t *testing.T) {
	f := newAPIFixture(t)
	first := f.photo(t, f.user)
	second := f.photo(t, f.user)
	stranger := test.FakeUser(f.db, "stranger@example.com")
	foreign := f.photo(t, stranger)

	rec := f.authJSON(http.MethodPut, "/studio/session/photo", models.SelectPhotoIn{PhotoID: first.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.authJSON(http.MethodGet, "/studio/photos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Photos []PhotoOut `json:"photos"`
	}
	decode(t, rec, &out)
	require.Len(t, out.Photos, 2)
	assert.Equal(t, second.ID, out.Photos[0].ID)
	assert.False(t, out.Photos[0].Selected)
	assert.Equal(t, first.ID, out.Photos[1].ID)
	assert.True(t, out.Photos[1].Selected)
	assert.Equal(t, "https://cdn.example.com/"+first.ObjectKey, out.Photos[1].URL)

	rec = f.authJSON(http.MethodPut, "/studio/session/photo", models.SelectPhotoIn{PhotoID: foreign.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetStudio(t *testing.T) {
	f := newAPIFixture(t)
	kept := f.photo(t, f.user)
	dropped := f.photo(t, f.user)
	f.toggle(t, models.CategoryTops, "f_top_1")
	rec := f.authJSON(http.MethodPut, "/studio/session/photo", models.SelectPhotoIn{PhotoID: dropped.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, f.db.Create(&models.TryOnBatch{
		UserAccountID: f.user.ID,
		Gender:        models.GenderFemale,
		PersonPhotoID: kept.ID,
		Attempts:      datatypes.NewJSONType([]models.PlannedAttempt{}),
		Status:        models.BatchCompleted,
	}).Error)
	require.NoError(t, f.db.Create(&models.ClassifyingItem{UserAccountID: f.user.ID, Gender: models.GenderFemale, TempID: "tmp-1", Status: models.ClassifyingFailed}).Error)
	require.NoError(t, f.catalogues.Save(context.Background(), f.user.ID, models.GenderMale, services.SeedCatalogue(models.GenderMale)))

	rec = f.authJSON(http.MethodPost, "/studio/session/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var count int64
	f.db.Model(&models.StudioSession{}).Where("user_account_id = ?", f.user.ID).Count(&count)
	assert.Zero(t, count)
	f.db.Model(&models.ClassifyingItem{}).Where("user_account_id = ?", f.user.ID).Count(&count)
	assert.Zero(t, count)

	var photos []models.PersonPhoto
	require.NoError(t, f.db.Where("user_account_id = ?", f.user.ID).Find(&photos).Error)
	require.Len(t, photos, 1)
	assert.Equal(t, kept.ID, photos[0].ID)

	_, found, err := f.catalogues.Load(context.Background(), f.user.ID, models.GenderMale)
	require.NoError(t, err)
	assert.False(t, found)

	rec = f.authJSON(http.MethodGet, "/studio/session", nil)
	var session SessionOut
	decode(t, rec, &session)
	assert.Nil(t, session.SelectedPhoto)
	assert.Zero(t, session.SelectedCount)
}
