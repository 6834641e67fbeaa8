package repository

import (
	"time"

	"github.com/pixmart/pixmart/app/models"
	"gorm.io/gorm"
)

// imageRepository implements the ImageRepository interface
type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new image repository instance
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

// Create creates a new image in the database
func (r *imageRepository) Create(image *models.Image) error {
	return r.db.Create(image).Error
}

// GetByID retrieves an image by its ID
func (r *imageRepository) GetByID(id uint) (*models.Image, error) {
	var image models.Image
	err := r.db.Preload("User").First(&image, id).Error
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// GetByUUID retrieves an image by its UUID
func (r *imageRepository) GetByUUID(uuid string) (*models.Image, error) {
	var image models.Image
	err := r.db.Preload("User").Where("uuid = ?", uuid).First(&image).Error
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// GetByUserID retrieves images for a specific user with pagination
func (r *imageRepository) GetByUserID(userID uint, offset, limit int) ([]models.Image, error) {
	var images []models.Image
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&images).Error
	return images, err
}

// GetPublicImages retrieves public images with pagination
func (r *imageRepository) GetPublicImages(offset, limit int) ([]models.Image, error) {
	var images []models.Image
	err := r.db.Where("is_public = ?", true).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&images).Error
	return images, err
}

// Update updates an existing image
func (r *imageRepository) Update(image *models.Image) error {
	return r.db.Save(image).Error
}

// Delete soft-deletes an image by ID
func (r *imageRepository) Delete(id uint) error {
	return r.db.Delete(&models.Image{}, id).Error
}

// Count returns the total number of images
func (r *imageRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Image{}).Count(&count).Error
	return count, err
}

// CountByUserID returns the number of images for a specific user
func (r *imageRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Image{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// UpdateViewCount increments the view count for an image
func (r *imageRepository) UpdateViewCount(id uint) error {
	return r.db.Model(&models.Image{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
}

// UpdateDownloadCount increments the download count for an image
func (r *imageRepository) UpdateDownloadCount(id uint) error {
	return r.db.Model(&models.Image{}).Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1)).Error
}

// GetDailyStats returns per-day upload counts for the given date range
func (r *imageRepository) GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error) {
	var stats []models.DailyStats
	err := r.db.Model(&models.Image{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&stats).Error
	return stats, err
}
