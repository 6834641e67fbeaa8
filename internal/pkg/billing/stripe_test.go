package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/internal/pkg/plans"
)

type fakeStripeFetcher struct {
	subs map[string]*stripe.Subscription
}

func (f *fakeStripeFetcher) Fetch(id string) (*stripe.Subscription, error) {
	if sub, ok := f.subs[id]; ok {
		return sub, nil
	}
	return nil, fmt.Errorf("no such subscription: %s", id)
}

func stripeEvent(t *testing.T, eventType string, data any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}
	return stripe.Event{
		ID:   "evt_test",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func stripeAPISubscription(id, priceID string, status stripe.SubscriptionStatus) *stripe.Subscription {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return &stripe.Subscription{
		ID:     id,
		Status: status,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					CurrentPeriodStart: now.Unix(),
					CurrentPeriodEnd:   now.AddDate(0, 1, 0).Unix(),
					Price:              &stripe.Price{ID: priceID},
				},
			},
		},
	}
}

func TestMapStripeStatus(t *testing.T) {
	tests := []struct {
		in   stripe.SubscriptionStatus
		want string
	}{
		{stripe.SubscriptionStatusActive, models.BillingStatusActive},
		{stripe.SubscriptionStatusTrialing, models.BillingStatusTrialing},
		{stripe.SubscriptionStatusPastDue, models.BillingStatusPastDue},
		{stripe.SubscriptionStatusUnpaid, models.BillingStatusPastDue},
		{stripe.SubscriptionStatusCanceled, models.BillingStatusCanceled},
		{stripe.SubscriptionStatusIncomplete, models.BillingStatusIncomplete},
		{stripe.SubscriptionStatusIncompleteExpired, models.BillingStatusExpired},
		{stripe.SubscriptionStatus("future_status"), models.BillingStatusIncomplete},
	}
	for _, tt := range tests {
		if got := mapStripeStatus(tt.in); got != tt.want {
			t.Errorf("mapStripeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMetadataHelpers(t *testing.T) {
	if got := metaUserID(map[string]string{"user_id": "42"}); got != 42 {
		t.Errorf("metaUserID = %d, want 42", got)
	}
	if got := metaUserID(map[string]string{"user_id": "abc"}); got != 0 {
		t.Errorf("metaUserID(non-numeric) = %d, want 0", got)
	}
	if got := metaUserID(nil); got != 0 {
		t.Errorf("metaUserID(nil) = %d, want 0", got)
	}
	if got := metaImageID(map[string]string{"image_id": "7"}); got != 7 {
		t.Errorf("metaImageID = %d, want 7", got)
	}
}

func TestStripeCheckoutCompletedSubscriptionMode(t *testing.T) {
	f := newServiceFixture()
	priceRef := plansStripeRef(t, plans.PlanPremium)
	p := NewStripeProcessor(f.svc, zerolog.Nop()).WithFetcher(&fakeStripeFetcher{
		subs: map[string]*stripe.Subscription{
			"sub_1": stripeAPISubscription("sub_1", priceRef, stripe.SubscriptionStatusActive),
		},
	})

	event := stripeEvent(t, "checkout.session.completed", map[string]any{
		"id":               "cs_1",
		"mode":             "subscription",
		"customer":         map[string]any{"id": "cus_1"},
		"customer_details": map[string]any{"email": "buyer@example.test"},
		"subscription":     map[string]any{"id": "sub_1"},
		"metadata":         map[string]string{"user_id": "21"},
	})
	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("Process: %v", err)
	}

	sub, err := f.subs.GetByProviderSubscriptionID(models.PaymentProviderStripe, "sub_1")
	if err != nil {
		t.Fatalf("subscription not stored: %v", err)
	}
	if sub.UserID != 21 {
		t.Errorf("user id = %d, want 21", sub.UserID)
	}
	if sub.PlanType != string(plans.PlanPremium) {
		t.Errorf("plan = %q, want premium", sub.PlanType)
	}
	if sub.CurrentPeriodStart == nil || sub.CurrentPeriodEnd == nil {
		t.Error("expected item periods to be carried over")
	}
	if got := f.settings.settings[21].Plan; got != string(plans.PlanPremium) {
		t.Errorf("effective plan = %q, want premium", got)
	}

	account, err := f.accounts.GetByProviderCustomerID(models.PaymentProviderStripe, "cus_1")
	if err != nil {
		t.Fatalf("payment account not linked: %v", err)
	}
	if account.UserID != 21 || account.Email != "buyer@example.test" {
		t.Errorf("account = %+v", account)
	}
}

func TestStripeCheckoutCompletedPaymentMode(t *testing.T) {
	f := newServiceFixture()
	p := NewStripeProcessor(f.svc, zerolog.Nop())

	event := stripeEvent(t, "checkout.session.completed", map[string]any{
		"id":           "cs_pay_1",
		"mode":         "payment",
		"amount_total": 2500,
		"currency":     "eur",
		"metadata": map[string]string{
			"user_id":      "21",
			"image_id":     "5",
			"license_type": "commercial",
		},
	})
	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("Process: %v", err)
	}

	purchase, err := f.purchases.GetByProviderSessionID("cs_pay_1")
	if err != nil {
		t.Fatalf("purchase not stored: %v", err)
	}
	if purchase.ImageID != 5 {
		t.Errorf("image id = %d, want 5", purchase.ImageID)
	}
	if purchase.AmountPaid != 2500 {
		t.Errorf("amount = %d, want 2500", purchase.AmountPaid)
	}
	if purchase.LicenseType != models.LicenseTypeCommercial {
		t.Errorf("license = %q, want commercial", purchase.LicenseType)
	}

	// Redelivery leaves a single row.
	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("replayed Process: %v", err)
	}
	if len(f.purchases.purchases) != 1 {
		t.Errorf("purchase rows = %d, want 1", len(f.purchases.purchases))
	}
}

func TestStripeSubscriptionUpdatedEvent(t *testing.T) {
	f := newServiceFixture()
	p := NewStripeProcessor(f.svc, zerolog.Nop())
	priceRef := plansStripeRef(t, plans.PlanStandard)

	event := stripeEvent(t, "customer.subscription.updated", map[string]any{
		"id":       "sub_upd",
		"status":   "past_due",
		"customer": map[string]any{"id": "cus_2"},
		"metadata": map[string]string{"user_id": "9"},
		"items": map[string]any{
			"data": []map[string]any{
				{
					"current_period_start": 1754006400,
					"current_period_end":   1756684800,
					"price":                map[string]any{"id": priceRef},
				},
			},
		},
	})
	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("Process: %v", err)
	}

	sub, err := f.subs.GetByProviderSubscriptionID(models.PaymentProviderStripe, "sub_upd")
	if err != nil {
		t.Fatalf("subscription not stored: %v", err)
	}
	if sub.Status != models.BillingStatusPastDue {
		t.Errorf("status = %q, want past_due", sub.Status)
	}
	// past_due keeps the plan label but is handled downstream for downloads.
	if got := f.settings.settings[9].Plan; got != string(plans.PlanStandard) {
		t.Errorf("plan = %q, want standard", got)
	}
}

func TestStripeSubscriptionDeletedEvent(t *testing.T) {
	f := newServiceFixture()
	p := NewStripeProcessor(f.svc, zerolog.Nop())
	ctx := context.Background()

	_, _, err := f.svc.SyncSubscription(ctx, NormalizedSubscription{
		UserID:                 9,
		Provider:               models.PaymentProviderStripe,
		ProviderSubscriptionID: "sub_del",
		ProviderPriceRef:       plansStripeRef(t, plans.PlanStandard),
		Status:                 models.BillingStatusActive,
	})
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	event := stripeEvent(t, "customer.subscription.deleted", map[string]any{"id": "sub_del"})
	if err := p.Process(ctx, event); err != nil {
		t.Fatalf("Process: %v", err)
	}

	sub, _ := f.subs.GetByProviderSubscriptionID(models.PaymentProviderStripe, "sub_del")
	if sub.Status != models.BillingStatusCanceled {
		t.Errorf("status = %q, want canceled", sub.Status)
	}
	if got := f.settings.settings[9].Plan; got != string(plans.PlanFree) {
		t.Errorf("plan after delete = %q, want free", got)
	}
}

func TestStripeInvoiceEventsTransitionStatus(t *testing.T) {
	f := newServiceFixture()
	p := NewStripeProcessor(f.svc, zerolog.Nop())
	ctx := context.Background()

	_, _, err := f.svc.SyncSubscription(ctx, NormalizedSubscription{
		UserID:                 9,
		Provider:               models.PaymentProviderStripe,
		ProviderSubscriptionID: "sub_inv",
		ProviderPriceRef:       plansStripeRef(t, plans.PlanStandard),
		Status:                 models.BillingStatusActive,
	})
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	failed := stripeEvent(t, "invoice.payment_failed", map[string]any{
		"id": "in_1",
		"lines": map[string]any{
			"data": []map[string]any{
				{"subscription": map[string]any{"id": "sub_inv"}},
			},
		},
	})
	if err := p.Process(ctx, failed); err != nil {
		t.Fatalf("Process failed invoice: %v", err)
	}
	sub, _ := f.subs.GetByProviderSubscriptionID(models.PaymentProviderStripe, "sub_inv")
	if sub.Status != models.BillingStatusPastDue {
		t.Errorf("status after failed invoice = %q, want past_due", sub.Status)
	}

	paid := stripeEvent(t, "invoice.payment_succeeded", map[string]any{
		"id": "in_2",
		"lines": map[string]any{
			"data": []map[string]any{
				{"subscription": map[string]any{"id": "sub_inv"}},
			},
		},
	})
	if err := p.Process(ctx, paid); err != nil {
		t.Fatalf("Process paid invoice: %v", err)
	}
	sub, _ = f.subs.GetByProviderSubscriptionID(models.PaymentProviderStripe, "sub_inv")
	if sub.Status != models.BillingStatusActive {
		t.Errorf("status after paid invoice = %q, want active", sub.Status)
	}
}

func TestStripeInvoiceWithoutSubscriptionIsSkipped(t *testing.T) {
	f := newServiceFixture()
	p := NewStripeProcessor(f.svc, zerolog.Nop())

	event := stripeEvent(t, "invoice.payment_succeeded", map[string]any{"id": "in_oneoff"})
	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("one-off invoices must be acknowledged, got: %v", err)
	}
}

func TestStripeUnknownEventIsAcknowledged(t *testing.T) {
	f := newServiceFixture()
	p := NewStripeProcessor(f.svc, zerolog.Nop())

	event := stripeEvent(t, "charge.refunded", map[string]any{"id": "ch_1"})
	if err := p.Process(context.Background(), event); err != nil {
		t.Fatalf("unknown event types must be acknowledged, got: %v", err)
	}
}
