package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Image struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	UUID          string `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	UserID        uint   `gorm:"index" json:"user_id"`
	User          User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title         string `gorm:"type:varchar(255)" json:"title"`
	Description   string `gorm:"type:text" json:"description"`
	ObjectKey     string `gorm:"type:varchar(255);not null" json:"-"`
	FileName      string `gorm:"type:varchar(255);not null" json:"file_name"`
	FileSize      int64  `gorm:"type:bigint" json:"file_size"`
	FileType      string `gorm:"type:varchar(50)" json:"file_type"`
	Width         int    `gorm:"type:int" json:"width"`
	Height        int    `gorm:"type:int" json:"height"`
	IsPublic      bool   `gorm:"default:true" json:"is_public"`
	ViewCount     int    `gorm:"default:0" json:"view_count"`
	DownloadCount int    `gorm:"default:0" json:"download_count"`
	// One-off purchase pricing in minor currency units; zero means the image
	// is only available through a subscription.
	PriceAmount int64  `gorm:"type:bigint;default:0" json:"price_amount"`
	Currency    string `gorm:"type:varchar(8);default:'eur'" json:"currency"`
	LicenseType string `gorm:"type:varchar(32);default:'standard'" json:"license_type"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID when none is set.
func (i *Image) BeforeCreate(tx *gorm.DB) error {
	if i.UUID == "" {
		i.UUID = uuid.New().String()
	}
	return nil
}

// FindImageByUUID looks up a single image by its public UUID.
func FindImageByUUID(db *gorm.DB, id string) (*Image, error) {
	var image Image
	if err := db.Where("uuid = ?", id).First(&image).Error; err != nil {
		return nil, err
	}
	return &image, nil
}
