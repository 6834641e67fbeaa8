package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/app/repository"
	"github.com/pixmart/pixmart/internal/pkg/plans"
)

// ErrUserUnresolved marks a webhook event whose target user could not be
// determined from metadata or the payment account mapping. Handlers drop
// such events after logging; the provider is not asked to retry.
var ErrUserUnresolved = errors.New("billing: no local user for provider event")

// Service provides provider-neutral billing synchronization and reconciliation.
type Service struct {
	subs      repository.SubscriptionRepository
	purchases repository.PurchaseRepository
	events    repository.WebhookEventRepository
	accounts  repository.PaymentAccountRepository
	settings  SettingsStore
}

// NewService creates a billing service from injected stores.
func NewService(
	subs repository.SubscriptionRepository,
	purchases repository.PurchaseRepository,
	events repository.WebhookEventRepository,
	accounts repository.PaymentAccountRepository,
	settings SettingsStore,
) *Service {
	return &Service{
		subs:      subs,
		purchases: purchases,
		events:    events,
		accounts:  accounts,
		settings:  settings,
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	repos := repository.NewRepositories(db)
	return NewService(repos.Subscription, repos.Purchase, repos.WebhookEvent, repos.PaymentAccount, NewSettingsStore(db))
}

// UpsertPaymentAccount links a provider customer identity to a local user.
func (s *Service) UpsertPaymentAccount(ctx context.Context, userID uint, provider, providerCustomerID, email string) (*models.PaymentAccount, error) {
	_ = ctx
	p := strings.ToLower(strings.TrimSpace(provider))
	cID := strings.TrimSpace(providerCustomerID)
	if userID == 0 || p == "" || cID == "" {
		return nil, errors.New("user_id, provider and provider_customer_id are required")
	}

	account := &models.PaymentAccount{
		UserID:             userID,
		Provider:           p,
		ProviderCustomerID: cID,
		Email:              strings.TrimSpace(email),
	}
	if err := s.accounts.Upsert(account); err != nil {
		return nil, err
	}
	return account, nil
}

// ResolveUser determines the local user for a provider event. Metadata wins;
// the payment account mapping is the fallback. ErrUserUnresolved is returned
// when neither yields a user.
func (s *Service) ResolveUser(ctx context.Context, provider string, metadataUserID uint, providerCustomerID string) (uint, error) {
	_ = ctx
	if metadataUserID != 0 {
		return metadataUserID, nil
	}
	cID := strings.TrimSpace(providerCustomerID)
	if cID == "" {
		return 0, ErrUserUnresolved
	}
	account, err := s.accounts.GetByProviderCustomerID(strings.ToLower(strings.TrimSpace(provider)), cID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserUnresolved
		}
		return 0, err
	}
	return account.UserID, nil
}

// SyncSubscription upserts provider subscription data and reconciles the
// user's effective plan. The upsert is keyed on the provider subscription id,
// so repeated delivery of the same event is a no-op update.
func (s *Service) SyncSubscription(ctx context.Context, in NormalizedSubscription) (*models.Subscription, string, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if in.UserID == 0 || provider == "" || strings.TrimSpace(in.ProviderSubscriptionID) == "" {
		return nil, "", errors.New("user_id, provider and provider_subscription_id are required")
	}

	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = models.BillingStatusActive
	}

	planType, interval, ok := plans.ResolvePriceRef(provider, in.ProviderPriceRef)
	if !ok {
		// Unknown price ref: keep the row but without entitlements. The
		// feature list and limits always come from the static catalog, never
		// from the event payload.
		planType = plans.PlanFree
		interval = models.BillingIntervalUnknown
	}

	sub := &models.Subscription{
		UserID:                 in.UserID,
		Provider:               provider,
		ProviderSubscriptionID: strings.TrimSpace(in.ProviderSubscriptionID),
		ProviderPriceRef:       strings.TrimSpace(in.ProviderPriceRef),
		PlanType:               string(planType),
		BillingInterval:        interval,
		Status:                 status,
		CurrentPeriodStart:     in.CurrentPeriodStart,
		CurrentPeriodEnd:       in.CurrentPeriodEnd,
		CancelAtPeriodEnd:      in.CancelAtPeriodEnd,
		RawPayloadJSON:         in.RawPayloadJSON,
	}
	if err := s.subs.Upsert(sub); err != nil {
		return nil, "", err
	}

	effectivePlan, err := s.ReconcileUserPlan(ctx, in.UserID)
	if err != nil {
		return sub, "", err
	}
	return sub, effectivePlan, nil
}

// SetSubscriptionStatus transitions the row matching the provider
// subscription id. A missing row is a no-op, reported as found=false; the
// caller logs and acknowledges so the provider will not retry.
func (s *Service) SetSubscriptionStatus(ctx context.Context, provider, providerSubscriptionID, status string) (bool, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	subID := strings.TrimSpace(providerSubscriptionID)
	if provider == "" || subID == "" {
		return false, errors.New("provider and provider_subscription_id are required")
	}

	affected, err := s.subs.UpdateStatusByProviderSubscriptionID(provider, subID, status)
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	sub, err := s.subs.GetByProviderSubscriptionID(provider, subID)
	if err != nil {
		return true, err
	}
	if _, err := s.ReconcileUserPlan(ctx, sub.UserID); err != nil {
		return true, err
	}
	return true, nil
}

// RecordPurchase inserts a one-off purchase. The provider session id is the
// idempotency key: a second delivery for the same checkout returns
// created=false with the stored row.
func (s *Service) RecordPurchase(ctx context.Context, in NormalizedPurchase) (bool, *models.Purchase, error) {
	_ = ctx
	if in.ImageID == 0 || strings.TrimSpace(in.ProviderSessionID) == "" {
		return false, nil, errors.New("image_id and provider_session_id are required")
	}

	status := strings.ToLower(strings.TrimSpace(in.PaymentStatus))
	if status == "" {
		status = models.PaymentStatusCompleted
	}
	license := strings.TrimSpace(in.LicenseType)
	if license == "" {
		license = models.LicenseTypeStandard
	}

	p := &models.Purchase{
		UserID:            in.UserID,
		ImageID:           in.ImageID,
		LicenseType:       license,
		AmountPaid:        in.AmountPaid,
		Currency:          strings.ToLower(strings.TrimSpace(in.Currency)),
		PaymentMethod:     strings.ToLower(strings.TrimSpace(in.PaymentMethod)),
		ProviderSessionID: strings.TrimSpace(in.ProviderSessionID),
		PaymentStatus:     status,
		PurchasedAt:       in.PurchasedAt,
	}
	return s.purchases.CreateIfNotExists(p)
}

// ReconcileUserPlan computes and writes the best effective plan for a user.
func (s *Service) ReconcileUserPlan(ctx context.Context, userID uint) (string, error) {
	_ = ctx
	if userID == 0 {
		return "", errors.New("user_id is required")
	}

	subs, err := s.subs.ListByUser(userID)
	if err != nil {
		return "", err
	}

	best := plans.PlanFree
	for _, sub := range subs {
		if !isEntitlingStatus(sub.Status) {
			continue
		}
		candidate := plans.Normalize(sub.PlanType)
		if plans.Rank(candidate) > plans.Rank(best) {
			best = candidate
		}
	}

	us, err := s.settings.GetOrCreateUserSettings(userID)
	if err != nil {
		return "", err
	}
	if plans.Normalize(us.Plan) == best {
		return string(best), nil
	}
	us.Plan = string(best)
	if err := s.settings.SaveUserSettings(us); err != nil {
		return "", err
	}
	return string(best), nil
}

// RecordWebhookEvent persists webhook payloads idempotently. Providers that
// send no event id are deduplicated on a payload hash instead. Only events
// already processed without error count as duplicates; a redelivery of a
// failed event is journaled again so the caller reprocesses it.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.events.CreateIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.events.MarkProcessed(webhookEventID, errMsg)
}

func isEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.BillingStatusActive, models.BillingStatusTrialing, models.BillingStatusPastDue:
		return true
	default:
		return false
	}
}
