package repository

import (
	"time"

	"github.com/pixmart/pixmart/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	Count() (int64, error)
}

// ImageRepository defines the interface for image-related database operations
type ImageRepository interface {
	Create(image *models.Image) error
	GetByID(id uint) (*models.Image, error)
	GetByUUID(uuid string) (*models.Image, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Image, error)
	GetPublicImages(offset, limit int) ([]models.Image, error)
	Update(image *models.Image) error
	Delete(id uint) error
	Count() (int64, error)
	CountByUserID(userID uint) (int64, error)
	UpdateViewCount(id uint) error
	UpdateDownloadCount(id uint) error
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// SubscriptionRepository defines the interface for subscription reconciliation
type SubscriptionRepository interface {
	Upsert(sub *models.Subscription) error
	GetByProviderSubscriptionID(provider, providerSubscriptionID string) (*models.Subscription, error)
	UpdateStatusByProviderSubscriptionID(provider, providerSubscriptionID, status string) (int64, error)
	ListByUser(userID uint) ([]models.Subscription, error)
	GetLatestEntitledByUser(userID uint, statuses []string) (*models.Subscription, error)
}

// PurchaseRepository defines the interface for one-off purchase records
type PurchaseRepository interface {
	CreateIfNotExists(p *models.Purchase) (bool, *models.Purchase, error)
	GetByProviderSessionID(sessionID string) (*models.Purchase, error)
	GetCompletedByUserAndImage(userID, imageID uint) (*models.Purchase, error)
	ListByUser(userID uint) ([]models.Purchase, error)
}

// DownloadRepository defines the interface for download usage records
type DownloadRepository interface {
	CreateIfNotExists(d *models.Download) (bool, error)
	CountByUserAndPeriod(userID uint, year, month int) (int64, error)
	CountByUser(userID uint) (int64, error)
	LastDownloadedAt(userID uint) (*time.Time, error)
}

// WebhookEventRepository defines the interface for the webhook event journal.
// CreateIfNotExists reports created=false only for events that were already
// processed without error; failed rows are reclaimed so retries reprocess.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
	ListRecent(offset, limit int) ([]models.WebhookEvent, error)
	Count() (int64, error)
}

// PaymentAccountRepository maps provider customer identities to users
type PaymentAccountRepository interface {
	Upsert(account *models.PaymentAccount) error
	GetByProviderCustomerID(provider, providerCustomerID string) (*models.PaymentAccount, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User           UserRepository
	Image          ImageRepository
	Subscription   SubscriptionRepository
	Purchase       PurchaseRepository
	Download       DownloadRepository
	WebhookEvent   WebhookEventRepository
	PaymentAccount PaymentAccountRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:           NewUserRepository(db),
		Image:          NewImageRepository(db),
		Subscription:   NewSubscriptionRepository(db),
		Purchase:       NewPurchaseRepository(db),
		Download:       NewDownloadRepository(db),
		WebhookEvent:   NewWebhookEventRepository(db),
		PaymentAccount: NewPaymentAccountRepository(db),
	}
}
