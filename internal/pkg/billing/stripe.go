package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/internal/pkg/env"
	"github.com/pixmart/pixmart/internal/pkg/plans"
)

// StripeSubscriptionFetcher retrieves a subscription from the Stripe API.
// checkout.session.completed payloads carry only the subscription id, so the
// processor re-fetches the full object for price and period data.
type StripeSubscriptionFetcher interface {
	Fetch(subscriptionID string) (*stripe.Subscription, error)
}

type apiSubscriptionFetcher struct{}

func (apiSubscriptionFetcher) Fetch(subscriptionID string) (*stripe.Subscription, error) {
	return subscriptionpkg.Get(subscriptionID, nil)
}

// StripeProcessor verifies and processes Stripe webhook events and creates
// checkout sessions for subscriptions and one-off image purchases.
type StripeProcessor struct {
	svc           *Service
	fetcher       StripeSubscriptionFetcher
	webhookSecret string
	logger        zerolog.Logger
}

// NewStripeProcessor configures the Stripe API key from the environment and
// returns a processor with a scoped logger.
func NewStripeProcessor(svc *Service, logger zerolog.Logger) *StripeProcessor {
	stripe.Key = env.GetEnv("STRIPE_SECRET_KEY", "")
	lg := logger.With().Str("component", "stripe").Logger()
	return &StripeProcessor{
		svc:           svc,
		fetcher:       apiSubscriptionFetcher{},
		webhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		logger:        lg,
	}
}

// WithFetcher replaces the subscription fetcher, used in tests.
func (p *StripeProcessor) WithFetcher(f StripeSubscriptionFetcher) *StripeProcessor {
	p.fetcher = f
	return p
}

// VerifyAndParse checks the Stripe-Signature header against the raw payload
// and returns the typed event.
func (p *StripeProcessor) VerifyAndParse(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
}

// Process dispatches a verified Stripe event. Unhandled event types are
// logged and acknowledged. Events whose user cannot be resolved are dropped
// the same way, so Stripe does not retry them forever.
func (p *StripeProcessor) Process(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return p.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return p.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		return p.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_succeeded":
		return p.handleInvoice(ctx, event, models.BillingStatusActive)
	case "invoice.payment_failed":
		return p.handleInvoice(ctx, event, models.BillingStatusPastDue)
	default:
		p.logger.Warn().Str("event_type", string(event.Type)).Msg("unhandled stripe webhook event")
		return nil
	}
}

func (p *StripeProcessor) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return fmt.Errorf("invalid checkout.session payload: %w", err)
	}

	switch cs.Mode {
	case stripe.CheckoutSessionModeSubscription:
		return p.completeSubscriptionCheckout(ctx, &cs, event.Data.Raw)
	case stripe.CheckoutSessionModePayment:
		return p.completePurchaseCheckout(ctx, &cs)
	default:
		p.logger.Warn().Str("session_id", cs.ID).Str("mode", string(cs.Mode)).Msg("checkout session mode not handled")
		return nil
	}
}

func (p *StripeProcessor) completeSubscriptionCheckout(ctx context.Context, cs *stripe.CheckoutSession, raw []byte) error {
	customerID := ""
	if cs.Customer != nil {
		customerID = cs.Customer.ID
	}
	userID, err := p.svc.ResolveUser(ctx, models.PaymentProviderStripe, metaUserID(cs.Metadata), customerID)
	if err != nil {
		if err == ErrUserUnresolved {
			p.logger.Warn().Str("session_id", cs.ID).Msg("checkout session has no resolvable user, dropping")
			return nil
		}
		return err
	}

	// Link the customer identity so later events without metadata still
	// resolve to this user.
	if customerID != "" {
		email := ""
		if cs.CustomerDetails != nil {
			email = cs.CustomerDetails.Email
		}
		if _, err := p.svc.UpsertPaymentAccount(ctx, userID, models.PaymentProviderStripe, customerID, email); err != nil {
			return fmt.Errorf("link stripe customer: %w", err)
		}
	}

	if cs.Subscription == nil || cs.Subscription.ID == "" {
		p.logger.Warn().Str("session_id", cs.ID).Msg("subscription checkout without subscription id, dropping")
		return nil
	}
	subObj, err := p.fetcher.Fetch(cs.Subscription.ID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", cs.Subscription.ID, err)
	}

	norm, err := normalizeStripeSubscription(userID, subObj, raw)
	if err != nil {
		return err
	}
	_, _, err = p.svc.SyncSubscription(ctx, norm)
	return err
}

func (p *StripeProcessor) completePurchaseCheckout(ctx context.Context, cs *stripe.CheckoutSession) error {
	imageID := metaImageID(cs.Metadata)
	if imageID == 0 {
		p.logger.Warn().Str("session_id", cs.ID).Msg("payment checkout without image_id metadata, dropping")
		return nil
	}

	var buyerID *uint
	if uid := metaUserID(cs.Metadata); uid != 0 {
		buyerID = &uid
	}

	license := cs.Metadata["license_type"]
	created, _, err := p.svc.RecordPurchase(ctx, NormalizedPurchase{
		UserID:            buyerID,
		ImageID:           imageID,
		LicenseType:       license,
		AmountPaid:        cs.AmountTotal,
		Currency:          string(cs.Currency),
		PaymentMethod:     models.PaymentProviderStripe,
		ProviderSessionID: cs.ID,
		PaymentStatus:     models.PaymentStatusCompleted,
		PurchasedAt:       time.Now(),
	})
	if err != nil {
		return err
	}
	if !created {
		p.logger.Info().Str("session_id", cs.ID).Msg("purchase already recorded for checkout session")
	}
	return nil
}

func (p *StripeProcessor) handleSubscriptionChanged(ctx context.Context, event stripe.Event) error {
	var ss stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
		return fmt.Errorf("invalid subscription payload: %w", err)
	}

	customerID := ""
	if ss.Customer != nil {
		customerID = ss.Customer.ID
	}
	userID, err := p.svc.ResolveUser(ctx, models.PaymentProviderStripe, metaUserID(ss.Metadata), customerID)
	if err != nil {
		if err == ErrUserUnresolved {
			p.logger.Warn().Str("subscription_id", ss.ID).Msg("subscription event has no resolvable user, dropping")
			return nil
		}
		return err
	}

	norm, err := normalizeStripeSubscription(userID, &ss, event.Data.Raw)
	if err != nil {
		return err
	}
	_, _, err = p.svc.SyncSubscription(ctx, norm)
	return err
}

func (p *StripeProcessor) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var ss stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
		return fmt.Errorf("invalid subscription payload: %w", err)
	}

	found, err := p.svc.SetSubscriptionStatus(ctx, models.PaymentProviderStripe, ss.ID, models.BillingStatusCanceled)
	if err != nil {
		return err
	}
	if !found {
		p.logger.Warn().Str("subscription_id", ss.ID).Msg("subscription.deleted for unknown subscription, ignoring")
	}
	return nil
}

func (p *StripeProcessor) handleInvoice(ctx context.Context, event stripe.Event, status string) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("invalid invoice payload: %w", err)
	}

	subID := ""
	if invoice.Lines != nil {
		for _, line := range invoice.Lines.Data {
			if line.Subscription != nil && line.Subscription.ID != "" {
				subID = line.Subscription.ID
				break
			}
		}
	}
	if subID == "" {
		// One-time invoice, nothing to transition.
		p.logger.Info().Str("invoice_id", invoice.ID).Msg("invoice without subscription, skipping")
		return nil
	}

	found, err := p.svc.SetSubscriptionStatus(ctx, models.PaymentProviderStripe, subID, status)
	if err != nil {
		return err
	}
	if !found {
		p.logger.Warn().Str("subscription_id", subID).Str("invoice_id", invoice.ID).Msg("invoice for unknown subscription, ignoring")
	}
	return nil
}

// CreateSubscriptionCheckout starts a Stripe Checkout session for a plan.
func (p *StripeProcessor) CreateSubscriptionCheckout(ctx context.Context, user *models.User, planType plans.PlanType, interval string) (string, error) {
	_ = ctx
	plan, ok := plans.Get(planType)
	if !ok || planType == plans.PlanFree {
		return "", fmt.Errorf("plan not purchasable: %s", planType)
	}
	priceID := plan.StripePriceMonthly
	if interval == models.BillingIntervalYear {
		priceID = plan.StripePriceYearly
	}

	baseURL := env.GetEnv("PUBLIC_URL", "http://localhost:8080")
	params := &stripe.CheckoutSessionParams{
		CustomerEmail:      stripe.String(user.Email),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(baseURL + "/checkout/cancel"),
		Metadata:   map[string]string{"user_id": strconv.FormatUint(uint64(user.ID), 10)},
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		p.logger.Error().Err(err).Str("plan", string(planType)).Msg("failed to create stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePurchaseCheckout starts a one-off payment Checkout session for an
// image. userID is nil for guest purchases.
func (p *StripeProcessor) CreatePurchaseCheckout(ctx context.Context, userID *uint, image *models.Image, licenseType string) (string, error) {
	_ = ctx
	if image.PriceAmount <= 0 {
		return "", fmt.Errorf("image %s is not for sale", image.UUID)
	}

	metadata := map[string]string{
		"image_id":     strconv.FormatUint(uint64(image.ID), 10),
		"license_type": licenseType,
	}
	if userID != nil {
		metadata["user_id"] = strconv.FormatUint(uint64(*userID), 10)
	}

	baseURL := env.GetEnv("PUBLIC_URL", "http://localhost:8080")
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(image.Currency),
					UnitAmount: stripe.Int64(image.PriceAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(image.Title),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(baseURL + "/i/" + image.UUID + "?purchase=success"),
		CancelURL:  stripe.String(baseURL + "/i/" + image.UUID),
		Metadata:   metadata,
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		p.logger.Error().Err(err).Str("image_uuid", image.UUID).Msg("failed to create stripe purchase session")
		return "", fmt.Errorf("create purchase session: %w", err)
	}
	return sess.URL, nil
}

// normalizeStripeSubscription converts a Stripe subscription object into the
// provider-neutral record. Period data lives on the first subscription item.
func normalizeStripeSubscription(userID uint, sub *stripe.Subscription, raw []byte) (NormalizedSubscription, error) {
	if len(sub.Items.Data) == 0 {
		return NormalizedSubscription{}, fmt.Errorf("subscription %s has no items", sub.ID)
	}
	item := sub.Items.Data[0]

	priceRef := ""
	if item.Price != nil {
		priceRef = item.Price.ID
	}

	var start, end *time.Time
	if item.CurrentPeriodStart > 0 {
		t := time.Unix(item.CurrentPeriodStart, 0)
		start = &t
	}
	if item.CurrentPeriodEnd > 0 {
		t := time.Unix(item.CurrentPeriodEnd, 0)
		end = &t
	}

	return NormalizedSubscription{
		UserID:                 userID,
		Provider:               models.PaymentProviderStripe,
		ProviderSubscriptionID: sub.ID,
		ProviderPriceRef:       priceRef,
		Status:                 mapStripeStatus(sub.Status),
		CurrentPeriodStart:     start,
		CurrentPeriodEnd:       end,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		RawPayloadJSON:         string(raw),
	}, nil
}

func mapStripeStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return models.BillingStatusActive
	case stripe.SubscriptionStatusTrialing:
		return models.BillingStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.BillingStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return models.BillingStatusCanceled
	case stripe.SubscriptionStatusIncomplete:
		return models.BillingStatusIncomplete
	case stripe.SubscriptionStatusIncompleteExpired:
		return models.BillingStatusExpired
	default:
		return models.BillingStatusIncomplete
	}
}

func metaUserID(metadata map[string]string) uint {
	v, err := strconv.ParseUint(metadata["user_id"], 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

func metaImageID(metadata map[string]string) uint {
	v, err := strconv.ParseUint(metadata["image_id"], 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
