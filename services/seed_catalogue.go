package services

import (
	"stylestudioapi/languageutil"
	"stylestudioapi/models"
)

const placeholderBaseURL = "https://placehold.co/300x400/F8F8F8/4a4a4a/"

func placeholder(id, name string) models.CatalogueItem {
	return models.CatalogueItem{
		ID:   id,
		Name: name,
		Image: models.ImageRef{
			MIMEType: "image/png",
			URL:      placeholderBaseURL + languageutil.PlaceholderText(name),
			Name:     name,
		},
	}
}

// SeedCatalogue is the starter catalogue shown before the user uploads
// anything. Every item is a placeholder and cannot be tried on.
func SeedCatalogue(gender models.Gender) models.Catalogue {
	if gender == models.GenderMale {
		return models.Catalogue{
			models.CategoryOutfits: {
				placeholder("m_outfit_1", "Business Suit"),
			},
			models.CategoryTops: {
				placeholder("m_top_1", "Oxford Shirt"),
				placeholder("m_top_2", "Polo Shirt"),
				placeholder("m_top_3", "Graphic Tee"),
			},
			models.CategoryBottoms: {
				placeholder("m_bottom_1", "Chinos"),
				placeholder("m_bottom_2", "Cargo Shorts"),
			},
			models.CategoryFootwear: {
				placeholder("m_footwear_1", "Leather Boots"),
				placeholder("m_footwear_2", "Sneakers"),
			},
			models.CategoryHeadwear: {
				placeholder("m_headwear_1", "Baseball Cap"),
			},
			models.CategoryAccessories: {
				placeholder("m_acc_1", "Chronograph Watch"),
			},
		}
	}
	return models.Catalogue{
		models.CategoryOutfits: {
			placeholder("f_outfit_1", "Summer Dress"),
			placeholder("f_outfit_2", "Evening Gown"),
		},
		models.CategoryTops: {
			placeholder("f_top_1", "Silk Blouse"),
			placeholder("f_top_2", "Casual Tee"),
			placeholder("f_top_3", "Crop Top"),
		},
		models.CategoryBottoms: {
			placeholder("f_bottom_1", "Denim Jeans"),
			placeholder("f_bottom_2", "A-line Skirt"),
		},
		models.CategoryFootwear: {
			placeholder("f_footwear_1", "High Heels"),
		},
		models.CategoryHeadwear: {},
		models.CategoryAccessories: {
			placeholder("f_acc_1", "Gold Necklace"),
		},
	}
}
