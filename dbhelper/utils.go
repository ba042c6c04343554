package dbhelper

import (
	"fmt"

	"stylestudioapi/models"

	"gorm.io/gorm"
)

// SetupCleaner wipes every table, children first.
func SetupCleaner(db *gorm.DB) func() {
	return func() {
		session := db.Session(&gorm.Session{AllowGlobalUpdate: true})
		session.Delete(&models.TryOnResult{})
		session.Delete(&models.TryOnBatch{})
		session.Delete(&models.ClassifyingItem{})
		session.Delete(&models.StudioSession{})
		session.Delete(&models.PersonPhoto{})
		session.Delete(&models.CatalogueBlob{})
		session.Delete(&models.UserPushToken{})
		session.Delete(&models.UserAccount{})
	}
}

func Migrate(db *gorm.DB, model interface{}) error {
	if err := db.AutoMigrate(model); err != nil {
		return fmt.Errorf("error while migrating %T: %w", model, err)
	}
	return nil
}
