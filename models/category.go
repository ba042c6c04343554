package models

import (
	"fmt"
	"strings"

	"stylestudioapi/languageutil"

	"github.com/go-playground/validator"
)

// Category is one of the six catalogue buckets a clothing item belongs to.
type Category string

const (
	CategoryOutfits     Category = "outfits"
	CategoryTops        Category = "tops"
	CategoryBottoms     Category = "bottoms"
	CategoryFootwear    Category = "footwear"
	CategoryHeadwear    Category = "headwear"
	CategoryAccessories Category = "accessories"
)

// Categories in declared order. Listing and prompts iterate in this order.
var Categories = []Category{
	CategoryOutfits,
	CategoryTops,
	CategoryBottoms,
	CategoryFootwear,
	CategoryHeadwear,
	CategoryAccessories,
}

func ParseCategory(value string) (Category, error) {
	normalized := Category(strings.ToLower(strings.TrimSpace(value)))
	for _, category := range Categories {
		if category == normalized {
			return category, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", value)
}

func (c Category) Valid() bool {
	for _, category := range Categories {
		if category == c {
			return true
		}
	}
	return false
}

// Title is the display label, e.g. "Accessories".
func (c Category) Title() string {
	return languageutil.Title(string(c))
}

// IsBase reports whether the category takes part in the base layer of a look.
func (c Category) IsBase() bool {
	return c == CategoryOutfits || c == CategoryTops || c == CategoryBottoms
}

func (c *Category) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*c = Category(v)
	case []byte:
		*c = Category(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Category", value)
	}
	return nil
}

func (c Category) Value() string {
	return string(c)
}

func ValidateCategory(fl validator.FieldLevel) bool {
	return Category(fl.Field().String()).Valid()
}
