package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"stylestudioapi/dbhelper"
	"stylestudioapi/models"
	"stylestudioapi/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedItem(id string) models.CatalogueItem {
	return models.CatalogueItem{
		ID:    id,
		Name:  "Item " + id,
		Image: models.ImageRef{MIMEType: "image/png", URL: "styles/1/" + id + ".png"},
	}
}

func TestCatalogueLoadMissing(t *testing.T) {
	store := services.NewCatalogueStore(dbhelper.SetupTestDB(), nil)

	_, found, err := store.Load(context.Background(), 1, models.GenderFemale)
	require.NoError(t, err)
	assert.False(t, found)

	catalogue, err := store.LoadOrSeed(context.Background(), 1, models.GenderFemale)
	require.NoError(t, err)
	assert.Equal(t, services.SeedCatalogue(models.GenderFemale).Normalized(), catalogue)
}

func TestCatalogueSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := services.NewCatalogueStore(dbhelper.SetupTestDB(), nil)
	catalogue := models.Catalogue{models.CategoryTops: {storedItem("a")}}

	require.NoError(t, store.Save(ctx, 1, models.GenderMale, catalogue))
	catalogue[models.CategoryTops] = append(catalogue[models.CategoryTops], storedItem("b"))
	require.NoError(t, store.Save(ctx, 1, models.GenderMale, catalogue))

	loaded, found, err := store.Load(ctx, 1, models.GenderMale)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, catalogue.Normalized(), loaded)
	assert.Len(t, loaded, len(models.Categories))

	_, found, err = store.Load(ctx, 2, models.GenderMale)
	require.NoError(t, err)
	assert.False(t, found, "catalogues are per user")

	_, found, err = store.Load(ctx, 1, models.GenderFemale)
	require.NoError(t, err)
	assert.False(t, found, "catalogues are per gender")
}

func TestCatalogueClear(t *testing.T) {
	ctx := context.Background()
	store := services.NewCatalogueStore(dbhelper.SetupTestDB(), nil)
	require.NoError(t, store.Save(ctx, 1, models.GenderMale, models.Catalogue{}))
	require.NoError(t, store.Save(ctx, 1, models.GenderFemale, models.Catalogue{}))
	require.NoError(t, store.Save(ctx, 2, models.GenderFemale, models.Catalogue{}))

	require.NoError(t, store.Clear(ctx, 1))

	for _, gender := range []models.Gender{models.GenderMale, models.GenderFemale} {
		_, found, err := store.Load(ctx, 1, gender)
		require.NoError(t, err)
		assert.False(t, found)
	}
	_, found, err := store.Load(ctx, 2, models.GenderFemale)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCatalogueCorruptBlobFallsBackToSeed(t *testing.T) {
	ctx := context.Background()
	db := dbhelper.SetupTestDB()
	store := services.NewCatalogueStore(db, nil)
	require.NoError(t, db.Create(&models.CatalogueBlob{
		UserAccountID: 1,
		Key:           models.GenderMale.CatalogueKey(),
		Value:         []byte(`{"tops": "oops"}`),
	}).Error)

	_, _, err := store.Load(ctx, 1, models.GenderMale)
	require.Error(t, err)

	catalogue, err := store.LoadOrSeed(ctx, 1, models.GenderMale)
	require.NoError(t, err)
	assert.Equal(t, services.SeedCatalogue(models.GenderMale).Count(), catalogue.Count())
}

func TestCatalogueAddItemStartsFromSeed(t *testing.T) {
	ctx := context.Background()
	store := services.NewCatalogueStore(dbhelper.SetupTestDB(), nil)

	require.NoError(t, store.AddItem(ctx, 1, models.GenderFemale, models.CategoryHeadwear, storedItem("hat")))

	catalogue, found, err := store.Load(ctx, 1, models.GenderFemale)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []models.CatalogueItem{storedItem("hat")}, catalogue[models.CategoryHeadwear])
	assert.Equal(t, services.SeedCatalogue(models.GenderFemale).Count()+1, catalogue.Count())

	err = store.AddItem(ctx, 1, models.GenderFemale, models.Category("gloves"), storedItem("x"))
	assert.Error(t, err)
}

func TestCatalogueAddItemConcurrent(t *testing.T) {
	ctx := context.Background()
	store := services.NewCatalogueStore(dbhelper.SetupTestDB(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.AddItem(ctx, 1, models.GenderMale, models.CategoryAccessories, storedItem(fmt.Sprintf("acc-%d", i))))
		}(i)
	}
	wg.Wait()

	catalogue, _, err := store.Load(ctx, 1, models.GenderMale)
	require.NoError(t, err)
	assert.Len(t, catalogue[models.CategoryAccessories], len(services.SeedCatalogue(models.GenderMale)[models.CategoryAccessories])+8)
}

func TestCatalogueEnsureSeededKeepsExistingRow(t *testing.T) {
	ctx := context.Background()
	store := services.NewCatalogueStore(dbhelper.SetupTestDB(), nil)

	require.NoError(t, store.EnsureSeeded(ctx, 2, models.GenderMale))
	seeded, found, err := store.Load(ctx, 2, models.GenderMale)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, services.SeedCatalogue(models.GenderMale).Normalized(), seeded)

	require.NoError(t, store.AddItem(ctx, 1, models.GenderFemale, models.CategoryTops, storedItem("first")))
	// a second classification batch seeding late must not reset the row
	require.NoError(t, store.EnsureSeeded(ctx, 1, models.GenderFemale))
	require.NoError(t, store.AddItem(ctx, 1, models.GenderFemale, models.CategoryTops, storedItem("second")))

	catalogue, _, err := store.Load(ctx, 1, models.GenderFemale)
	require.NoError(t, err)
	tops := catalogue[models.CategoryTops]
	require.GreaterOrEqual(t, len(tops), 2)
	assert.Equal(t, []models.CatalogueItem{storedItem("first"), storedItem("second")}, tops[len(tops)-2:])
	assert.Equal(t, services.SeedCatalogue(models.GenderFemale).Count()+2, catalogue.Count())
}
