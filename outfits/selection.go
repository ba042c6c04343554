package outfits

import "stylestudioapi/models"

// Selection holds the picked items of each category in the order they were picked.
type Selection map[models.Category][]models.CatalogueItem

func NewSelection() Selection {
	selection := make(Selection, len(models.Categories))
	for _, category := range models.Categories {
		selection[category] = []models.CatalogueItem{}
	}
	return selection
}

// Resolve rebuilds a selection from stored IDs. IDs no longer present in the
// catalogue, or stored under another category, are dropped.
func Resolve(ids models.SelectedIDs, catalogue models.Catalogue) Selection {
	selection := NewSelection()
	for _, category := range models.Categories {
		for _, id := range ids[category] {
			for _, item := range catalogue[category] {
				if item.ID == id {
					selection[category] = append(selection[category], item)
					break
				}
			}
		}
	}
	return selection
}

func (s Selection) IDs() models.SelectedIDs {
	ids := make(models.SelectedIDs, len(models.Categories))
	for _, category := range models.Categories {
		categoryIDs := make([]string, 0, len(s[category]))
		for _, item := range s[category] {
			categoryIDs = append(categoryIDs, item.ID)
		}
		ids[category] = categoryIDs
	}
	return ids
}

func (s Selection) IsSelected(category models.Category, itemID string) bool {
	for _, item := range s[category] {
		if item.ID == itemID {
			return true
		}
	}
	return false
}

// Toggle selects the item, or deselects it if already selected, and reports
// whether it ends up selected. Picking an outfit drops any tops and bottoms;
// picking a top or bottom drops any outfits. Deselecting touches nothing else.
func (s Selection) Toggle(category models.Category, item models.CatalogueItem) bool {
	current := s[category]
	for i, selected := range current {
		if selected.ID == item.ID {
			remaining := make([]models.CatalogueItem, 0, len(current)-1)
			remaining = append(remaining, current[:i]...)
			remaining = append(remaining, current[i+1:]...)
			s[category] = remaining
			return false
		}
	}

	switch category {
	case models.CategoryOutfits:
		s[models.CategoryTops] = []models.CatalogueItem{}
		s[models.CategoryBottoms] = []models.CatalogueItem{}
	case models.CategoryTops, models.CategoryBottoms:
		s[models.CategoryOutfits] = []models.CatalogueItem{}
	}
	s[category] = append(append([]models.CatalogueItem{}, s[category]...), item)
	return true
}

func (s Selection) Clear() {
	for _, category := range models.Categories {
		s[category] = []models.CatalogueItem{}
	}
}

func (s Selection) Count() int {
	total := 0
	for _, category := range models.Categories {
		total += len(s[category])
	}
	return total
}

// Conflicting reports an outfit selected alongside a top or bottom.
func (s Selection) Conflicting() bool {
	return len(s[models.CategoryOutfits]) > 0 &&
		(len(s[models.CategoryTops]) > 0 || len(s[models.CategoryBottoms]) > 0)
}

func (s Selection) tagged(category models.Category) []TaggedItem {
	items := s[category]
	out := make([]TaggedItem, 0, len(items))
	for _, item := range items {
		out = append(out, TaggedItem{Item: item, Category: category})
	}
	return out
}
