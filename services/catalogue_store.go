package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"stylestudioapi/logger"
	"stylestudioapi/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogueStoreProvider interface {
	Load(ctx context.Context, userID uint, gender models.Gender) (models.Catalogue, bool, error)
	Save(ctx context.Context, userID uint, gender models.Gender, catalogue models.Catalogue) error
	Clear(ctx context.Context, userID uint) error
	LoadOrSeed(ctx context.Context, userID uint, gender models.Gender) (models.Catalogue, error)
	AddItem(ctx context.Context, userID uint, gender models.Gender, category models.Category, item models.CatalogueItem) error
}

// GormCatalogueStore keeps catalogues as JSON blobs, one row per user and gender.
type GormCatalogueStore struct {
	DB  *gorm.DB
	log *logger.Logger
}

func NewCatalogueStore(db *gorm.DB, log *logger.Logger) *GormCatalogueStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &GormCatalogueStore{DB: db, log: log}
}

func (s *GormCatalogueStore) Load(ctx context.Context, userID uint, gender models.Gender) (models.Catalogue, bool, error) {
	return loadCatalogue(s.DB.WithContext(ctx), userID, gender, false)
}

func (s *GormCatalogueStore) Save(ctx context.Context, userID uint, gender models.Gender, catalogue models.Catalogue) error {
	return saveCatalogue(s.DB.WithContext(ctx), userID, gender, catalogue)
}

func (s *GormCatalogueStore) Clear(ctx context.Context, userID uint) error {
	result := s.DB.WithContext(ctx).
		Where("user_account_id = ?", userID).
		Where(map[string]interface{}{"key": []string{models.GenderFemale.CatalogueKey(), models.GenderMale.CatalogueKey()}}).
		Delete(&models.CatalogueBlob{})
	if result.Error != nil {
		return fmt.Errorf("failed to clear catalogues: %w", result.Error)
	}
	return nil
}

// LoadOrSeed never fails on a corrupt blob: it logs and serves the seed.
func (s *GormCatalogueStore) LoadOrSeed(ctx context.Context, userID uint, gender models.Gender) (models.Catalogue, error) {
	catalogue, found, err := s.Load(ctx, userID, gender)
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
			return nil, err
		}
		s.log.Warn("stored catalogue unreadable, using seed", "user_account_id", userID, "gender", gender, "error", err)
		found = false
	}
	if !found {
		return SeedCatalogue(gender).Normalized(), nil
	}
	return catalogue, nil
}

// EnsureSeeded stores the seed catalogue for the user unless a row already
// exists. An existing row is never touched.
func (s *GormCatalogueStore) EnsureSeeded(ctx context.Context, userID uint, gender models.Gender) error {
	return ensureCatalogueRow(s.DB.WithContext(ctx), userID, gender)
}

// AddItem appends to the category inside a transaction so concurrent
// classification batches of the same user do not drop each other's items.
// The row is created first so the locking read always has a row to lock.
func (s *GormCatalogueStore) AddItem(ctx context.Context, userID uint, gender models.Gender, category models.Category, item models.CatalogueItem) error {
	if !category.Valid() {
		return fmt.Errorf("unknown category %q", category)
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCatalogueRow(tx, userID, gender); err != nil {
			return err
		}
		catalogue, found, err := loadCatalogue(tx, userID, gender, true)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("catalogue %s of user %d vanished", gender.CatalogueKey(), userID)
		}
		catalogue[category] = append(catalogue[category], item)
		return saveCatalogue(tx, userID, gender, catalogue)
	})
}

func ensureCatalogueRow(db *gorm.DB, userID uint, gender models.Gender) error {
	value, err := json.Marshal(SeedCatalogue(gender).Normalized())
	if err != nil {
		return fmt.Errorf("failed to encode seed catalogue: %w", err)
	}
	blob := models.CatalogueBlob{
		UserAccountID: userID,
		Key:           gender.CatalogueKey(),
		Value:         value,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_account_id"}, {Name: "key"}},
		DoNothing: true,
	}).Create(&blob).Error
	if err != nil {
		return fmt.Errorf("failed to seed catalogue: %w", err)
	}
	return nil
}

func loadCatalogue(db *gorm.DB, userID uint, gender models.Gender, lock bool) (models.Catalogue, bool, error) {
	query := db.Where(map[string]interface{}{"user_account_id": userID, "key": gender.CatalogueKey()})
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var blob models.CatalogueBlob
	if err := query.First(&blob).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load catalogue: %w", err)
	}

	catalogue := models.Catalogue{}
	if err := json.Unmarshal(blob.Value, &catalogue); err != nil {
		return nil, false, fmt.Errorf("failed to decode catalogue %s: %w", blob.Key, err)
	}
	return catalogue.Normalized(), true, nil
}

func saveCatalogue(db *gorm.DB, userID uint, gender models.Gender, catalogue models.Catalogue) error {
	value, err := json.Marshal(catalogue.Normalized())
	if err != nil {
		return fmt.Errorf("failed to encode catalogue: %w", err)
	}
	blob := models.CatalogueBlob{
		UserAccountID: userID,
		Key:           gender.CatalogueKey(),
		Value:         value,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_account_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&blob).Error
	if err != nil {
		return fmt.Errorf("failed to save catalogue: %w", err)
	}
	return nil
}
