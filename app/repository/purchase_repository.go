package repository

import (
	"github.com/pixmart/pixmart/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// purchaseRepository implements the PurchaseRepository interface
type purchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository creates a new purchase repository instance
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

// CreateIfNotExists inserts a purchase keyed on the provider session id. The
// unique index plus conflict-ignore makes the insert itself the idempotency
// guard, so two concurrent deliveries of the same checkout cannot both land.
func (r *purchaseRepository) CreateIfNotExists(p *models.Purchase) (bool, *models.Purchase, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_session_id"}},
		DoNothing: true,
	}).Create(p)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.Purchase
	if err := r.db.Where("provider_session_id = ?", p.ProviderSessionID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *purchaseRepository) GetByProviderSessionID(sessionID string) (*models.Purchase, error) {
	var p models.Purchase
	err := r.db.Where("provider_session_id = ?", sessionID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepository) GetCompletedByUserAndImage(userID, imageID uint) (*models.Purchase, error) {
	var p models.Purchase
	err := r.db.Where("user_id = ? AND image_id = ? AND payment_status = ?",
		userID, imageID, models.PaymentStatusCompleted).
		Order("purchased_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepository) ListByUser(userID uint) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.Where("user_id = ?", userID).Order("purchased_at DESC").Find(&purchases).Error
	return purchases, err
}
