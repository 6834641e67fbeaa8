package models

import "time"

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

const (
	LicenseTypeStandard   = "standard"
	LicenseTypeExtended   = "extended"
	LicenseTypeCommercial = "commercial"
)

// Purchase records a one-off image sale. The provider session/order/charge
// identifier carries a unique index so repeated webhook deliveries for the
// same checkout collapse into a single row at the storage layer.
type Purchase struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            *uint     `gorm:"index" json:"user_id,omitempty"`
	ImageID           uint      `gorm:"not null;index" json:"image_id"`
	LicenseType       string    `gorm:"type:varchar(32);not null;default:'standard'" json:"license_type"`
	AmountPaid        int64     `gorm:"type:bigint;not null" json:"amount_paid"`
	Currency          string    `gorm:"type:varchar(8);not null;default:'eur'" json:"currency"`
	PaymentMethod     string    `gorm:"type:varchar(20);not null" json:"payment_method"`
	ProviderSessionID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_session_id"`
	PaymentStatus     string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	PurchasedAt       time.Time `gorm:"type:timestamp;not null" json:"purchased_at"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
