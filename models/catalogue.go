package models

import (
	"strings"

	"gorm.io/datatypes"
)

// ImageRef points at the image of a catalogue item: either inline bytes or a
// bucket key in URL. Seed items carry neither, only a placeholder link.
type ImageRef struct {
	Data     []byte `json:"base64"`
	MIMEType string `json:"mime_type"`
	URL      string `json:"url"`
	Name     string `json:"name"`
}

func (i ImageRef) IsPlaceholder() bool {
	return len(i.Data) == 0 && !i.IsStoredObject()
}

// IsStoredObject reports whether URL is a bucket key rather than an absolute link.
func (i ImageRef) IsStoredObject() bool {
	return i.URL != "" && !strings.HasPrefix(i.URL, "http://") && !strings.HasPrefix(i.URL, "https://")
}

type CatalogueItem struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Image ImageRef `json:"image"`
}

// Catalogue groups items per category, each slice in insertion order.
type Catalogue map[Category][]CatalogueItem

func (c Catalogue) Find(id string) (CatalogueItem, Category, bool) {
	for _, category := range Categories {
		for _, item := range c[category] {
			if item.ID == id {
				return item, category, true
			}
		}
	}
	return CatalogueItem{}, "", false
}

func (c Catalogue) Count() int {
	total := 0
	for _, category := range Categories {
		total += len(c[category])
	}
	return total
}

// Normalized returns a copy with every category present.
func (c Catalogue) Normalized() Catalogue {
	out := make(Catalogue, len(Categories))
	for _, category := range Categories {
		items := make([]CatalogueItem, len(c[category]))
		copy(items, c[category])
		out[category] = items
	}
	return out
}

// CatalogueBlob is a key-value row holding one user's serialized catalogue.
type CatalogueBlob struct {
	JsonModel
	UserAccountID uint           `gorm:"uniqueIndex:idx_catalogue_owner_key" json:"-"`
	Key           string         `gorm:"uniqueIndex:idx_catalogue_owner_key" json:"key"`
	Value         datatypes.JSON `json:"value"`
}
