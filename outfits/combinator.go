// Package outfits expands a per-category selection of catalogue items into the
// list of looks that get sent to try-on generation.
//
// A look is built from two layers. The base layer is either a single outfit or
// a top/bottom pair; the accessory layer is any combination of footwear,
// headwear and accessories. Categories with nothing selected are skipped
// rather than collapsing the product to nothing.
package outfits

import (
	"strings"

	"stylestudioapi/models"
)

// TaggedItem is a catalogue item together with the category it was picked from.
type TaggedItem struct {
	Item     models.CatalogueItem `json:"item"`
	Category models.Category      `json:"category"`
}

// Attempt is one look: base items first, then footwear, headwear, accessories.
type Attempt []TaggedItem

func (a Attempt) Names() string {
	names := make([]string, 0, len(a))
	for _, tagged := range a {
		names = append(names, tagged.Item.Name)
	}
	return strings.Join(names, ", ")
}

// HasPlaceholder reports whether any item lacks image data.
func (a Attempt) HasPlaceholder() bool {
	for _, tagged := range a {
		if tagged.Item.Image.IsPlaceholder() {
			return true
		}
	}
	return false
}

// Plan strips image data so the look can be queued and resolved later.
func (a Attempt) Plan() models.PlannedAttempt {
	items := make([]models.PlannedItem, 0, len(a))
	for _, tagged := range a {
		items = append(items, models.PlannedItem{
			ID:       tagged.Item.ID,
			Name:     tagged.Item.Name,
			Category: tagged.Category,
		})
	}
	return models.PlannedAttempt{Items: items}
}

// GenerateOutfitCombinations returns every look for the selection, in nested
// loop order with the rightmost category varying fastest.
//
// When outfits are selected they form the base layer on their own and any
// selected tops or bottoms are ignored. Selection.Toggle keeps the two apart,
// but a hand-built selection holding both is tolerated rather than rejected.
func GenerateOutfitCombinations(selection Selection) []Attempt {
	var bases [][]TaggedItem
	if outfitItems := selection.tagged(models.CategoryOutfits); len(outfitItems) > 0 {
		for _, outfit := range outfitItems {
			bases = append(bases, []TaggedItem{outfit})
		}
	} else {
		bases = cartesian(
			selection.tagged(models.CategoryTops),
			selection.tagged(models.CategoryBottoms),
		)
	}

	extras := cartesian(
		selection.tagged(models.CategoryFootwear),
		selection.tagged(models.CategoryHeadwear),
		selection.tagged(models.CategoryAccessories),
	)

	attempts := []Attempt{}
	if len(bases) == 1 && len(bases[0]) == 0 {
		for _, combo := range extras {
			if len(combo) > 0 {
				attempts = append(attempts, Attempt(combo))
			}
		}
		return attempts
	}

	for _, base := range bases {
		for _, extra := range extras {
			attempt := make(Attempt, 0, len(base)+len(extra))
			attempt = append(attempt, base...)
			attempt = append(attempt, extra...)
			attempts = append(attempts, attempt)
		}
	}
	return attempts
}

// cartesian multiplies the non-empty factors. With no non-empty factor the
// result is a single empty combination.
func cartesian[T any](factors ...[]T) [][]T {
	result := [][]T{{}}
	for _, factor := range factors {
		if len(factor) == 0 {
			continue
		}
		next := make([][]T, 0, len(result)*len(factor))
		for _, prefix := range result {
			for _, value := range factor {
				combo := make([]T, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, value))
			}
		}
		result = next
	}
	return result
}
