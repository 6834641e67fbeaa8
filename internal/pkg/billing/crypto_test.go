package billing

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pixmart/pixmart/app/models"
)

func TestParseCryptoWebhookEvent(t *testing.T) {
	payload := []byte(`{
		"event": {
			"id": "evt-uuid",
			"type": "charge:confirmed",
			"data": {
				"code": "CHARGE1",
				"metadata": {"user_id": "12", "image_id": "34", "license_type": "extended"},
				"pricing": {"local": {"amount": "19.99", "currency": "EUR"}},
				"created_at": "2026-08-01T10:00:00Z"
			}
		}
	}`)

	event, err := ParseCryptoWebhookEvent(payload)
	if err != nil {
		t.Fatalf("ParseCryptoWebhookEvent: %v", err)
	}
	if event.EventID != "evt-uuid" {
		t.Errorf("event id = %q", event.EventID)
	}
	if event.Type != "charge:confirmed" {
		t.Errorf("type = %q", event.Type)
	}
	if event.Charge.Code != "CHARGE1" {
		t.Errorf("charge code = %q", event.Charge.Code)
	}
	if event.Charge.Metadata["image_id"] != "34" {
		t.Errorf("metadata image_id = %q", event.Charge.Metadata["image_id"])
	}
}

func TestParseCryptoWebhookEventMissingType(t *testing.T) {
	if _, err := ParseCryptoWebhookEvent([]byte(`{"event":{"id":"x"}}`)); err == nil {
		t.Error("expected error for payload without event type")
	}
}

func TestCryptoProcessorRecordsConfirmedCharge(t *testing.T) {
	f := newServiceFixture()
	p := NewCryptoProcessor(f.svc, zerolog.Nop())

	event := &CryptoWebhookEvent{
		EventID: "evt-1",
		Type:    "charge:confirmed",
		Charge: CryptoCharge{
			Code:     "CHARGE1",
			Metadata: map[string]string{"user_id": "12", "image_id": "34", "license_type": "extended"},
		},
	}
	event.Charge.Pricing.Local.Amount = "19.99"
	event.Charge.Pricing.Local.Currency = "EUR"

	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("Process: %v", err)
	}

	stored, err := f.purchases.GetByProviderSessionID("CHARGE1")
	if err != nil {
		t.Fatalf("purchase not recorded: %v", err)
	}
	if stored.PaymentStatus != models.PaymentStatusCompleted {
		t.Errorf("status = %q, want completed", stored.PaymentStatus)
	}
	if stored.AmountPaid != 1999 {
		t.Errorf("amount = %d, want 1999", stored.AmountPaid)
	}
	if stored.PaymentMethod != models.PaymentProviderCrypto {
		t.Errorf("payment method = %q", stored.PaymentMethod)
	}
	if stored.LicenseType != models.LicenseTypeExtended {
		t.Errorf("license = %q, want extended", stored.LicenseType)
	}

	// Replayed event keeps the single row.
	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("replayed Process: %v", err)
	}
	if len(f.purchases.purchases) != 1 {
		t.Errorf("purchase rows = %d, want 1", len(f.purchases.purchases))
	}
}

func TestCryptoProcessorRecordsFailedCharge(t *testing.T) {
	f := newServiceFixture()
	p := NewCryptoProcessor(f.svc, zerolog.Nop())

	event := &CryptoWebhookEvent{
		Type: "charge:failed",
		Charge: CryptoCharge{
			Code:     "CHARGE2",
			Metadata: map[string]string{"image_id": "7"},
		},
	}
	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("Process: %v", err)
	}

	stored, err := f.purchases.GetByProviderSessionID("CHARGE2")
	if err != nil {
		t.Fatalf("purchase not recorded: %v", err)
	}
	if stored.PaymentStatus != models.PaymentStatusFailed {
		t.Errorf("status = %q, want failed", stored.PaymentStatus)
	}
	if stored.UserID != nil {
		t.Error("guest charge should have nil user id")
	}
}

func TestCryptoProcessorDropsChargeWithoutImage(t *testing.T) {
	f := newServiceFixture()
	p := NewCryptoProcessor(f.svc, zerolog.Nop())

	event := &CryptoWebhookEvent{
		Type:   "charge:confirmed",
		Charge: CryptoCharge{Code: "CHARGE3"},
	}
	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(f.purchases.purchases) != 0 {
		t.Error("charge without image_id metadata should not record a purchase")
	}
}

func TestMinorUnitConversion(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{1999, "19.99"},
		{100, "1.00"},
		{5, "0.05"},
		{4999, "49.99"},
	}
	for _, tt := range tests {
		if got := formatMinorUnits(tt.amount); got != tt.want {
			t.Errorf("formatMinorUnits(%d) = %q, want %q", tt.amount, got, tt.want)
		}
		if got := parseMinorUnits(tt.want); got != tt.amount {
			t.Errorf("parseMinorUnits(%q) = %d, want %d", tt.want, got, tt.amount)
		}
	}
	if got := parseMinorUnits("garbage"); got != 0 {
		t.Errorf("parseMinorUnits(garbage) = %d, want 0", got)
	}
}
