package repository

import (
	"github.com/pixmart/pixmart/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentAccountRepository implements the PaymentAccountRepository interface
type paymentAccountRepository struct {
	db *gorm.DB
}

// NewPaymentAccountRepository creates a new payment account repository instance
func NewPaymentAccountRepository(db *gorm.DB) PaymentAccountRepository {
	return &paymentAccountRepository{db: db}
}

// Upsert creates or refreshes the provider-customer-to-user linkage.
func (r *paymentAccountRepository) Upsert(account *models.PaymentAccount) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_customer_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"email",
			"updated_at",
		}),
	}).Create(account).Error; err != nil {
		return err
	}

	return r.db.Where("provider = ? AND provider_customer_id = ?", account.Provider, account.ProviderCustomerID).
		First(account).Error
}

func (r *paymentAccountRepository) GetByProviderCustomerID(provider, providerCustomerID string) (*models.PaymentAccount, error) {
	var account models.PaymentAccount
	err := r.db.Where("provider = ? AND provider_customer_id = ?", provider, providerCustomerID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}
