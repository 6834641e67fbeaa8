package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/internal/pkg/env"
)

const (
	defaultPayPalAPIBaseURL = "https://api-m.paypal.com"
	paypalSandboxAPIBaseURL = "https://api-m.sandbox.paypal.com"
)

type PayPalClient struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	WebhookID    string

	HTTPClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type PayPalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// PayPalSubscription is the subset of the subscription resource the
// reconciler needs.
type PayPalSubscription struct {
	ID       string `json:"id"`
	PlanID   string `json:"plan_id"`
	Status   string `json:"status"`
	CustomID string `json:"custom_id"`

	Subscriber struct {
		PayerID      string `json:"payer_id"`
		EmailAddress string `json:"email_address"`
	} `json:"subscriber"`

	StartTime   string `json:"start_time"`
	BillingInfo struct {
		NextBillingTime string `json:"next_billing_time"`
	} `json:"billing_info"`
}

// PayPalWebhookEvent is the envelope of a PayPal webhook delivery. Resource
// stays raw so each event type can decode its own shape.
type PayPalWebhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

// PayPalSale is the resource of PAYMENT.SALE.COMPLETED deliveries.
type PayPalSale struct {
	ID                 string `json:"id"`
	BillingAgreementID string `json:"billing_agreement_id"`
	Custom             string `json:"custom"`
	Amount             struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"amount"`
}

func NewPayPalClientFromEnv() *PayPalClient {
	base := strings.TrimSpace(env.GetEnv("PAYPAL_API_BASE_URL", ""))
	if base == "" {
		if env.IsDev() {
			base = paypalSandboxAPIBaseURL
		} else {
			base = defaultPayPalAPIBaseURL
		}
	}

	return &PayPalClient{
		ClientID:     strings.TrimSpace(env.GetEnv("PAYPAL_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("PAYPAL_CLIENT_SECRET", "")),
		APIBaseURL:   strings.TrimRight(base, "/"),
		WebhookID:    strings.TrimSpace(env.GetEnv("PAYPAL_WEBHOOK_ID", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// token returns a cached client-credentials access token, refreshing it
// shortly before expiry.
func (c *PayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-60*time.Second)) {
		return c.accessToken, nil
	}

	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return "", errors.New("PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET are not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("paypal token request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out PayPalTokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", errors.New("paypal token request returned empty access_token")
	}

	c.accessToken = out.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func (c *PayPalClient) doJSON(ctx context.Context, method, path string, in any, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var payload io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paypal request %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// GetSubscription fetches the full subscription resource.
func (c *PayPalClient) GetSubscription(ctx context.Context, subscriptionID string) (*PayPalSubscription, error) {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return nil, errors.New("subscription id is required")
	}
	var out PayPalSubscription
	if err := c.doJSON(ctx, http.MethodGet, "/v1/billing/subscriptions/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSubscriptionApproval creates a subscription for a billing plan and
// returns the approval URL the user is redirected to.
func (c *PayPalClient) CreateSubscriptionApproval(ctx context.Context, planID, customID, returnURL, cancelURL string) (string, error) {
	if strings.TrimSpace(planID) == "" {
		return "", errors.New("plan id is required")
	}

	req := map[string]any{
		"plan_id":   planID,
		"custom_id": customID,
		"application_context": map[string]any{
			"return_url":  returnURL,
			"cancel_url":  cancelURL,
			"user_action": "SUBSCRIBE_NOW",
		},
	}
	var out struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/billing/subscriptions", req, &out); err != nil {
		return "", err
	}
	for _, link := range out.Links {
		if link.Rel == "approve" {
			return link.Href, nil
		}
	}
	return "", errors.New("paypal subscription response missing approval link")
}

// VerifyWebhookSignature calls PayPal's verification API with the delivery
// headers and raw body. PayPal signs with per-webhook certificates, so unlike
// the other providers verification needs a round trip.
func (c *PayPalClient) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	if strings.TrimSpace(c.WebhookID) == "" {
		return false, errors.New("PAYPAL_WEBHOOK_ID is not configured")
	}

	req := map[string]any{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        c.WebhookID,
		"webhook_event":     json.RawMessage(rawBody),
	}
	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", req, &out); err != nil {
		return false, err
	}
	return out.VerificationStatus == "SUCCESS", nil
}

// ParsePayPalWebhookEvent decodes the webhook envelope.
func ParsePayPalWebhookEvent(payload []byte) (*PayPalWebhookEvent, error) {
	var out PayPalWebhookEvent
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.EventType) == "" {
		return nil, errors.New("paypal webhook payload missing event_type")
	}
	return &out, nil
}

// PayPalStatusToBillingStatus maps PayPal subscription statuses onto the
// local billing vocabulary.
func PayPalStatusToBillingStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "ACTIVE":
		return models.BillingStatusActive
	case "SUSPENDED":
		return models.BillingStatusPastDue
	case "CANCELLED":
		return models.BillingStatusCanceled
	case "EXPIRED":
		return models.BillingStatusExpired
	case "APPROVAL_PENDING", "APPROVED":
		return models.BillingStatusIncomplete
	default:
		return models.BillingStatusIncomplete
	}
}

// PayPalProcessor turns verified PayPal webhook events into billing service
// calls.
type PayPalProcessor struct {
	svc    *Service
	client *PayPalClient
	logger zerolog.Logger
}

func NewPayPalProcessor(svc *Service, client *PayPalClient, logger zerolog.Logger) *PayPalProcessor {
	return &PayPalProcessor{
		svc:    svc,
		client: client,
		logger: logger.With().Str("component", "paypal").Logger(),
	}
}

// Process dispatches a verified PayPal event. Unhandled event types and
// events without a resolvable user are acknowledged, not retried.
func (p *PayPalProcessor) Process(ctx context.Context, event *PayPalWebhookEvent) error {
	switch event.EventType {
	case "BILLING.SUBSCRIPTION.CREATED",
		"BILLING.SUBSCRIPTION.ACTIVATED",
		"BILLING.SUBSCRIPTION.UPDATED",
		"BILLING.SUBSCRIPTION.RE-ACTIVATED":
		return p.syncSubscriptionResource(ctx, event)
	case "BILLING.SUBSCRIPTION.CANCELLED":
		return p.transitionFromResource(ctx, event, models.BillingStatusCanceled)
	case "BILLING.SUBSCRIPTION.SUSPENDED",
		"BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		return p.transitionFromResource(ctx, event, models.BillingStatusPastDue)
	case "BILLING.SUBSCRIPTION.EXPIRED":
		return p.transitionFromResource(ctx, event, models.BillingStatusExpired)
	case "PAYMENT.SALE.COMPLETED":
		return p.handleSaleCompleted(ctx, event)
	default:
		p.logger.Warn().Str("event_type", event.EventType).Msg("unhandled paypal webhook event")
		return nil
	}
}

func (p *PayPalProcessor) syncSubscriptionResource(ctx context.Context, event *PayPalWebhookEvent) error {
	var sub PayPalSubscription
	if err := json.Unmarshal(event.Resource, &sub); err != nil {
		return fmt.Errorf("invalid paypal subscription resource: %w", err)
	}
	if strings.TrimSpace(sub.ID) == "" {
		return errors.New("paypal subscription resource missing id")
	}

	userID, err := p.svc.ResolveUser(ctx, models.PaymentProviderPayPal, parseUintString(sub.CustomID), sub.Subscriber.PayerID)
	if err != nil {
		if err == ErrUserUnresolved {
			p.logger.Warn().Str("subscription_id", sub.ID).Msg("paypal subscription has no resolvable user, dropping")
			return nil
		}
		return err
	}

	if sub.Subscriber.PayerID != "" {
		if _, err := p.svc.UpsertPaymentAccount(ctx, userID, models.PaymentProviderPayPal, sub.Subscriber.PayerID, sub.Subscriber.EmailAddress); err != nil {
			return fmt.Errorf("link paypal payer: %w", err)
		}
	}

	norm := NormalizedSubscription{
		UserID:                 userID,
		Provider:               models.PaymentProviderPayPal,
		ProviderSubscriptionID: sub.ID,
		ProviderPriceRef:       sub.PlanID,
		Status:                 PayPalStatusToBillingStatus(sub.Status),
		CurrentPeriodStart:     parseRFC3339(sub.StartTime),
		CurrentPeriodEnd:       parseRFC3339(sub.BillingInfo.NextBillingTime),
		RawPayloadJSON:         string(event.Resource),
	}
	_, _, err = p.svc.SyncSubscription(ctx, norm)
	return err
}

func (p *PayPalProcessor) transitionFromResource(ctx context.Context, event *PayPalWebhookEvent, status string) error {
	var resource struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return fmt.Errorf("invalid paypal resource: %w", err)
	}
	if strings.TrimSpace(resource.ID) == "" {
		return errors.New("paypal resource missing subscription id")
	}

	found, err := p.svc.SetSubscriptionStatus(ctx, models.PaymentProviderPayPal, resource.ID, status)
	if err != nil {
		return err
	}
	if !found {
		p.logger.Warn().Str("subscription_id", resource.ID).Str("event_type", event.EventType).Msg("paypal event for unknown subscription, ignoring")
	}
	return nil
}

// handleSaleCompleted confirms a recurring payment. The sale references the
// subscription through billing_agreement_id; a sale without one is a one-off
// payment handled by the checkout flow, not here.
func (p *PayPalProcessor) handleSaleCompleted(ctx context.Context, event *PayPalWebhookEvent) error {
	var sale PayPalSale
	if err := json.Unmarshal(event.Resource, &sale); err != nil {
		return fmt.Errorf("invalid paypal sale resource: %w", err)
	}
	if strings.TrimSpace(sale.BillingAgreementID) == "" {
		p.logger.Info().Str("sale_id", sale.ID).Msg("paypal sale without billing agreement, skipping")
		return nil
	}

	found, err := p.svc.SetSubscriptionStatus(ctx, models.PaymentProviderPayPal, sale.BillingAgreementID, models.BillingStatusActive)
	if err != nil {
		return err
	}
	if !found {
		p.logger.Warn().Str("subscription_id", sale.BillingAgreementID).Msg("paypal sale for unknown subscription, ignoring")
	}
	return nil
}

func parseRFC3339(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func parseUintString(s string) uint {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
