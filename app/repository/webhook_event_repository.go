package repository

import (
	"time"

	"github.com/pixmart/pixmart/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists journals a webhook delivery unless the same provider
// event id was already processed successfully. An existing row that failed
// verification or processing is reclaimed for the new delivery so provider
// retries get reprocessed instead of being answered as duplicates.
func (r *webhookEventRepository) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	if tx.RowsAffected > 0 {
		var stored models.WebhookEvent
		if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
			First(&stored).Error; err != nil {
			return false, nil, err
		}
		return true, &stored, nil
	}

	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	if stored.ProcessedAt != nil && stored.ProcessingError == "" {
		return false, &stored, nil
	}

	// Failed or stale row: take it over for the fresh delivery. The guarded
	// WHERE keeps a concurrent retry from reclaiming the same row twice.
	claim := r.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND (processed_at IS NULL OR processing_error <> '')", stored.ID).
		Updates(map[string]interface{}{
			"event_type":       event.EventType,
			"payload_json":     event.PayloadJSON,
			"signature_valid":  event.SignatureValid,
			"processed_at":     nil,
			"processing_error": "",
		})
	if claim.Error != nil {
		return false, nil, claim.Error
	}
	if claim.RowsAffected == 0 {
		return false, &stored, nil
	}
	if err := r.db.Where("id = ?", stored.ID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return true, &stored, nil
}

// ListRecent returns journal entries newest-first for operator inspection.
func (r *webhookEventRepository) ListRecent(offset, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Order("id DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, err
}

// Count returns the total number of journaled events.
func (r *webhookEventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.WebhookEvent{}).Count(&count).Error
	return count, err
}

// MarkProcessed stamps an event as processed and stores an optional error.
func (r *webhookEventRepository) MarkProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
