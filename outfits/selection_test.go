package outfits

import (
	"testing"

	"stylestudioapi/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleSelectsAndDeselects(t *testing.T) {
	selection := NewSelection()

	assert.True(t, selection.Toggle(models.CategoryFootwear, item("F1")))
	assert.True(t, selection.Toggle(models.CategoryFootwear, item("F2")))
	assert.True(t, selection.IsSelected(models.CategoryFootwear, "F1"))
	assert.Equal(t, 2, selection.Count())

	assert.False(t, selection.Toggle(models.CategoryFootwear, item("F1")))
	assert.False(t, selection.IsSelected(models.CategoryFootwear, "F1"))
	assert.Equal(t, []string{"F2"}, selection.IDs()[models.CategoryFootwear])
}

func TestToggleOutfitClearsTopsAndBottoms(t *testing.T) {
	selection := NewSelection()
	selection.Toggle(models.CategoryTops, item("T1"))
	selection.Toggle(models.CategoryBottoms, item("B1"))
	selection.Toggle(models.CategoryHeadwear, item("H1"))

	selection.Toggle(models.CategoryOutfits, item("O1"))

	assert.Empty(t, selection[models.CategoryTops])
	assert.Empty(t, selection[models.CategoryBottoms])
	assert.Equal(t, []string{"O1"}, selection.IDs()[models.CategoryOutfits])
	assert.Equal(t, []string{"H1"}, selection.IDs()[models.CategoryHeadwear])
	assert.False(t, selection.Conflicting())
}

func TestToggleTopOrBottomClearsOutfits(t *testing.T) {
	for _, category := range []models.Category{models.CategoryTops, models.CategoryBottoms} {
		t.Run(string(category), func(t *testing.T) {
			selection := NewSelection()
			selection.Toggle(models.CategoryOutfits, item("O1"))
			selection.Toggle(models.CategoryOutfits, item("O2"))

			selection.Toggle(category, item("X1"))

			assert.Empty(t, selection[models.CategoryOutfits])
			assert.Equal(t, []string{"X1"}, selection.IDs()[category])
		})
	}
}

func TestToggleDeselectDoesNotClearOthers(t *testing.T) {
	selection := NewSelection()
	selection.Toggle(models.CategoryTops, item("T1"))
	selection.Toggle(models.CategoryBottoms, item("B1"))

	selection.Toggle(models.CategoryTops, item("T1"))

	assert.Empty(t, selection[models.CategoryTops])
	assert.Equal(t, []string{"B1"}, selection.IDs()[models.CategoryBottoms])
}

func TestResolveKeepsOrderAndDropsUnknown(t *testing.T) {
	catalogue := models.Catalogue{
		models.CategoryTops:     {item("T1"), item("T2"), item("T3")},
		models.CategoryFootwear: {item("F1")},
	}
	stored := models.SelectedIDs{
		models.CategoryTops:     {"T3", "gone", "T1"},
		models.CategoryFootwear: {"T2"},
	}

	selection := Resolve(stored, catalogue)

	assert.Equal(t, []string{"T3", "T1"}, selection.IDs()[models.CategoryTops])
	assert.Empty(t, selection[models.CategoryFootwear])
	require.Len(t, selection, len(models.Categories))
}

func TestClear(t *testing.T) {
	selection := NewSelection()
	selection.Toggle(models.CategoryTops, item("T1"))
	selection.Toggle(models.CategoryAccessories, item("A1"))

	selection.Clear()

	assert.Equal(t, 0, selection.Count())
	assert.Empty(t, GenerateOutfitCombinations(selection))
}
