package models

type PhotoDataURLIn struct {
	Name    string `json:"name" validate:"omitempty,max=200"`
	DataURL string `json:"data_url" validate:"required"`
}

type GenderIn struct {
	Gender string `json:"gender" validate:"required,gender"`
}

type SelectionToggleIn struct {
	Category string `json:"category" validate:"required,category"`
	ItemID   string `json:"item_id" validate:"required,max=200"`
}

type SelectPhotoIn struct {
	PhotoID uint `json:"photo_id" validate:"required"`
}
