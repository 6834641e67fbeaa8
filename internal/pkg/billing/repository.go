package billing

import (
	"github.com/pixmart/pixmart/app/models"
	"gorm.io/gorm"
)

// SettingsStore provides the user-settings operations the billing service
// needs to write reconciled plans. The subscription, purchase, webhook event
// and payment account stores come from app/repository.
type SettingsStore interface {
	GetOrCreateUserSettings(userID uint) (*models.UserSettings, error)
	SaveUserSettings(us *models.UserSettings) error
}

type gormSettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore creates a settings store backed by GORM.
func NewSettingsStore(db *gorm.DB) SettingsStore {
	return &gormSettingsStore{db: db}
}

func (s *gormSettingsStore) GetOrCreateUserSettings(userID uint) (*models.UserSettings, error) {
	return models.GetOrCreateUserSettings(s.db, userID)
}

func (s *gormSettingsStore) SaveUserSettings(us *models.UserSettings) error {
	return s.db.Save(us).Error
}
