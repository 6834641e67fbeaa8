package billing

import "time"

// NormalizedSubscription is the provider-agnostic shape used by the billing
// service when syncing external subscription state into local tables. Each
// provider adapter parses its raw payload into this record before dispatch;
// the service never touches provider-specific fields.
type NormalizedSubscription struct {
	UserID                 uint
	Provider               string
	ProviderSubscriptionID string
	ProviderPriceRef       string
	Status                 string
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
	RawPayloadJSON         string
}

// NormalizedPurchase is the provider-agnostic shape for a one-off image sale.
type NormalizedPurchase struct {
	UserID            *uint
	ImageID           uint
	LicenseType       string
	AmountPaid        int64
	Currency          string
	PaymentMethod     string
	ProviderSessionID string
	PaymentStatus     string
	PurchasedAt       time.Time
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
