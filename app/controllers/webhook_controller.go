package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/internal/pkg/billing"
	"github.com/pixmart/pixmart/internal/pkg/database"
	"github.com/pixmart/pixmart/internal/pkg/env"
	"github.com/pixmart/pixmart/internal/pkg/logging"
)

const webhookProcessTimeout = 15 * time.Second

var errInvalidWebhookSignature = errors.New("invalid signature")

// HandleStripeWebhook receives Stripe events. Every delivery is journaled
// before anything else; replays answer 200 without reprocessing.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	processor := billing.NewStripeProcessor(svc, logging.New("stripe-webhook"))

	event, verifyErr := processor.VerifyAndParse(payload, c.Get("Stripe-Signature"))
	signatureValid := verifyErr == nil

	eventID, eventType := event.ID, string(event.Type)
	if !signatureValid {
		// The envelope is still journaled for audit even when the
		// signature does not check out.
		eventID, eventType = peekEventEnvelope(payload, "id", "type")
	}

	journal, done := journalWebhook(ctx, svc, billing.WebhookEventInput{
		Provider:        models.PaymentProviderStripe,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(payload),
		SignatureValid:  signatureValid,
	})
	if done != nil {
		return done(c)
	}

	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, journal.ID, errInvalidWebhookSignature)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	if err := processor.Process(ctx, event); err != nil {
		_ = svc.MarkWebhookProcessed(ctx, journal.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}
	_ = svc.MarkWebhookProcessed(ctx, journal.ID, nil)
	return c.JSON(fiber.Map{"received": true})
}

// HandlePayPalWebhook receives PayPal events. Signature verification is a
// round trip to PayPal's verify API, skipped when payments run simulated.
func HandlePayPalWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	client := billing.NewPayPalClientFromEnv()

	signatureValid := true
	if !env.PaymentsSimulated() {
		valid, err := client.VerifyWebhookSignature(ctx, paypalDeliveryHeaders(c), payload)
		signatureValid = err == nil && valid
	}

	event, parseErr := billing.ParsePayPalWebhookEvent(payload)
	eventID, eventType := peekEventEnvelope(payload, "id", "event_type")
	if parseErr == nil {
		eventID, eventType = event.ID, event.EventType
	}

	journal, done := journalWebhook(ctx, svc, billing.WebhookEventInput{
		Provider:        models.PaymentProviderPayPal,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(payload),
		SignatureValid:  signatureValid,
	})
	if done != nil {
		return done(c)
	}

	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, journal.ID, errInvalidWebhookSignature)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if parseErr != nil {
		_ = svc.MarkWebhookProcessed(ctx, journal.ID, parseErr)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	processor := billing.NewPayPalProcessor(svc, client, logging.New("paypal-webhook"))
	if err := processor.Process(ctx, event); err != nil {
		_ = svc.MarkWebhookProcessed(ctx, journal.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}
	_ = svc.MarkWebhookProcessed(ctx, journal.ID, nil)
	return c.JSON(fiber.Map{"received": true})
}

// HandleCryptoWebhook receives payment-processor charge events, verified with
// an HMAC over the raw body.
func HandleCryptoWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	client := billing.NewCryptoClientFromEnv()

	signatureValid := billing.VerifyCryptoWebhookSignature(
		payload, c.Get("X-CC-Webhook-Signature"), client.WebhookSecret)

	event, parseErr := billing.ParseCryptoWebhookEvent(payload)
	var eventID, eventType string
	if parseErr == nil {
		eventID, eventType = event.EventID, event.Type
	}

	journal, done := journalWebhook(ctx, svc, billing.WebhookEventInput{
		Provider:        models.PaymentProviderCrypto,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(payload),
		SignatureValid:  signatureValid,
	})
	if done != nil {
		return done(c)
	}

	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, journal.ID, errInvalidWebhookSignature)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if parseErr != nil {
		_ = svc.MarkWebhookProcessed(ctx, journal.ID, parseErr)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	processor := billing.NewCryptoProcessor(svc, logging.New("crypto-webhook"))
	if err := processor.Process(ctx, event); err != nil {
		_ = svc.MarkWebhookProcessed(ctx, journal.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}
	_ = svc.MarkWebhookProcessed(ctx, journal.ID, nil)
	return c.JSON(fiber.Map{"received": true})
}

// journalWebhook appends the delivery to the event journal. The second return
// value is non-nil when the request is already answered (journal failure or
// replay of an event processed before). Retries of failed deliveries come
// back as fresh journal entries and run through processing again.
func journalWebhook(ctx context.Context, svc *billing.Service, in billing.WebhookEventInput) (*models.WebhookEvent, func(*fiber.Ctx) error) {
	created, journal, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		return nil, func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "journal_failed"})
		}
	}
	if !created {
		return nil, func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"received": true, "duplicate": true})
		}
	}
	return journal, nil
}

// peekEventEnvelope pulls string fields out of the raw payload without
// trusting the rest of it. Used to journal deliveries that fail verification
// or full parsing.
func peekEventEnvelope(payload []byte, idKey, typeKey string) (string, string) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", ""
	}
	str := func(key string) string {
		var s string
		if raw, ok := envelope[key]; ok {
			_ = json.Unmarshal(raw, &s)
		}
		return s
	}
	return str(idKey), str(typeKey)
}

func paypalDeliveryHeaders(c *fiber.Ctx) http.Header {
	h := http.Header{}
	for _, name := range []string{
		"Paypal-Auth-Algo",
		"Paypal-Cert-Url",
		"Paypal-Transmission-Id",
		"Paypal-Transmission-Sig",
		"Paypal-Transmission-Time",
	} {
		h.Set(name, c.Get(name))
	}
	return h
}
