package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"stylestudioapi/dbhelper"
	"stylestudioapi/models"
	"stylestudioapi/services"
	"stylestudioapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestReadSelection(t *testing.T) {
	selection, err := readSelection(strings.NewReader(`{"Tops": ["Silk Blouse", "Casual Tee", "Silk Blouse"], "bottoms": ["Denim Jeans"]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Silk Blouse", "Casual Tee"}, selection.IDs()[models.CategoryTops])
	assert.Equal(t, []string{"Denim Jeans"}, selection.IDs()[models.CategoryBottoms])

	_, err = readSelection(strings.NewReader(`{"dresses": ["Gown"]}`))
	assert.Error(t, err)
	_, err = readSelection(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestPrintCombos(t *testing.T) {
	selection, err := readSelection(strings.NewReader(`{"tops": ["Silk Blouse", "Casual Tee"], "bottoms": ["Denim Jeans"], "footwear": ["Sneakers"]}`))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printCombos(&out, selection, false))
	assert.Equal(t, "2 look(s)\n  1. Silk Blouse, Denim Jeans, Sneakers\n  2. Casual Tee, Denim Jeans, Sneakers\n", out.String())

	out.Reset()
	require.NoError(t, printCombos(&out, selection, true))
	var plans []models.PlannedAttempt
	require.NoError(t, json.Unmarshal(out.Bytes(), &plans))
	require.Len(t, plans, 2)
	assert.Equal(t, models.CategoryFootwear, plans[1].Items[2].Category)
}

func TestPrintCombosConflicting(t *testing.T) {
	selection, err := readSelection(strings.NewReader(`{"outfits": ["Summer Dress"], "tops": ["Crop Top"]}`))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printCombos(&out, selection, false))
	assert.Equal(t, "note: outfits are selected, tops and bottoms are ignored\n1 look(s)\n  1. Summer Dress\n", out.String())
}

func TestPrintCatalogue(t *testing.T) {
	var out bytes.Buffer
	printCatalogue(&out, services.SeedCatalogue(models.GenderMale).Normalized(), false)

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "10 item(s), seed\n"), text)
	assert.Contains(t, text, "Headwear (1)\n  m_headwear_1  Baseball Cap [placeholder]\n")
}

func TestParseGender(t *testing.T) {
	gender, err := parseGender("male")
	require.NoError(t, err)
	assert.Equal(t, models.GenderMale, gender)

	_, err = parseGender("Male")
	assert.Error(t, err)
}

func TestResetBatch(t *testing.T) {
	db := dbhelper.SetupTestDB()
	user := test.FakeUser(db, "")
	photo := models.PersonPhoto{UserAccountID: user.ID, ObjectKey: "photos/me.png"}
	require.NoError(t, db.Create(&photo).Error)
	message := "Generation timed out. Please try again."
	failed := models.TryOnBatch{UserAccountID: user.ID, PersonPhotoID: photo.ID, Attempts: datatypes.NewJSONType([]models.PlannedAttempt{}), Status: models.BatchFailed, ErrorMessage: &message}
	completed := models.TryOnBatch{UserAccountID: user.ID, PersonPhotoID: photo.ID, Attempts: datatypes.NewJSONType([]models.PlannedAttempt{}), Status: models.BatchCompleted}
	require.NoError(t, db.Create(&failed).Error)
	require.NoError(t, db.Create(&completed).Error)

	lastRun := time.Now().Add(-2 * time.Hour)
	require.NoError(t, db.Model(&failed).UpdateColumns(map[string]interface{}{"created_at": lastRun, "updated_at": lastRun}).Error)

	require.NoError(t, resetBatch(db, failed.ID))
	var saved models.TryOnBatch
	require.NoError(t, db.First(&saved, failed.ID).Error)
	assert.Equal(t, models.BatchPending, saved.Status)
	assert.Nil(t, saved.ErrorMessage)
	assert.WithinDuration(t, time.Now(), saved.UpdatedAt, time.Minute)

	assert.Error(t, resetBatch(db, completed.ID))
	assert.Error(t, resetBatch(db, 424242))
}
