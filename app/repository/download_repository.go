package repository

import (
	"time"

	"github.com/pixmart/pixmart/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// downloadRepository implements the DownloadRepository interface
type downloadRepository struct {
	db *gorm.DB
}

// NewDownloadRepository creates a new download repository instance
func NewDownloadRepository(db *gorm.DB) DownloadRepository {
	return &downloadRepository{db: db}
}

// CreateIfNotExists inserts a download record unless one already exists for
// the same (user, image, year, month); a conflict is reported as created=false
// and treated as success by callers.
func (r *downloadRepository) CreateIfNotExists(d *models.Download) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "image_id"},
			{Name: "year"},
			{Name: "month"},
		},
		DoNothing: true,
	}).Create(d)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *downloadRepository) CountByUserAndPeriod(userID uint, year, month int) (int64, error) {
	var count int64
	err := r.db.Model(&models.Download{}).
		Where("user_id = ? AND year = ? AND month = ?", userID, year, month).
		Count(&count).Error
	return count, err
}

func (r *downloadRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Download{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *downloadRepository) LastDownloadedAt(userID uint) (*time.Time, error) {
	var d models.Download
	err := r.db.Where("user_id = ?", userID).Order("downloaded_at DESC").First(&d).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &d.DownloadedAt, nil
}
