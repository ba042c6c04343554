package models

import "gorm.io/datatypes"

// PersonPhoto is a user photo (capture or upload) kept in the bucket.
type PersonPhoto struct {
	JsonModel
	UserAccountID uint        `json:"-"`
	UserAccount   UserAccount `json:"-"`
	ObjectKey     string      `json:"-"`
	MIMEType      string      `json:"mime_type"`
	Name          string      `json:"name"`
}

// SelectedIDs stores selected catalogue item IDs per category in selection order.
type SelectedIDs map[Category][]string

type StudioSession struct {
	JsonModel
	UserAccountID   uint                            `gorm:"uniqueIndex" json:"-"`
	Gender          Gender                          `gorm:"default:female" json:"gender"`
	SelectedPhotoID *uint                           `json:"selected_photo_id"`
	Selection       datatypes.JSONType[SelectedIDs] `json:"-"`
}

const (
	ClassifyingPending = "pending"
	ClassifyingFailed  = "failed"
)

// ClassifyingItem is an uploaded garment waiting for (or failed) classification.
type ClassifyingItem struct {
	JsonModel
	UserAccountID uint    `json:"-"`
	Gender        Gender  `json:"gender"`
	TempID        string  `gorm:"uniqueIndex" json:"temp_id"`
	Name          string  `json:"name"`
	ObjectKey     string  `json:"-"`
	MIMEType      string  `json:"mime_type"`
	Status        string  `json:"status"`
	ErrorMessage  *string `json:"error"`
}
