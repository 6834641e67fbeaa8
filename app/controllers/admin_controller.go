package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/app/repository"
)

// HandleAdminWebhookEvents lists the webhook journal newest-first so
// operators can inspect failed or replayed provider deliveries.
func HandleAdminWebhookEvents(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetWebhookEventRepository()

	events, err := repo.ListRecent(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "journal_unavailable",
		})
	}
	total, err := repo.Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "journal_unavailable",
		})
	}

	items := make([]fiber.Map, 0, len(events))
	for i := range events {
		items = append(items, webhookEventResponse(&events[i]))
	}
	return c.JSON(fiber.Map{
		"events": items,
		"total":  total,
	})
}

func webhookEventResponse(event *models.WebhookEvent) fiber.Map {
	return fiber.Map{
		"id":                event.ID,
		"provider":          event.Provider,
		"provider_event_id": event.ProviderEventID,
		"event_type":        event.EventType,
		"signature_valid":   event.SignatureValid,
		"processed_at":      formatTimePtr(event.ProcessedAt),
		"processing_error":  event.ProcessingError,
		"created_at":        event.CreatedAt.UTC().Format(time.RFC3339),
	}
}
