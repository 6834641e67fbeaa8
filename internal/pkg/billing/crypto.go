package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/internal/pkg/env"
)

const defaultCryptoAPIBaseURL = "https://api.commerce.coinbase.com"

// CryptoClient talks to a Coinbase-Commerce-compatible charge API. One-off
// image sales are the only crypto flow; there are no crypto subscriptions.
type CryptoClient struct {
	APIKey        string
	APIBaseURL    string
	WebhookSecret string

	HTTPClient *http.Client
}

// CryptoCharge is the subset of the charge resource used by checkout and the
// webhook processor.
type CryptoCharge struct {
	Code      string            `json:"code"`
	HostedURL string            `json:"hosted_url"`
	Metadata  map[string]string `json:"metadata"`
	Pricing   struct {
		Local struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"local"`
	} `json:"pricing"`
	CreatedAt string `json:"created_at"`
}

// CryptoWebhookEvent is the decoded inner event of a crypto webhook delivery.
type CryptoWebhookEvent struct {
	EventID string
	Type    string
	Charge  CryptoCharge
}

func NewCryptoClientFromEnv() *CryptoClient {
	return &CryptoClient{
		APIKey:        strings.TrimSpace(env.GetEnv("CRYPTO_API_KEY", "")),
		APIBaseURL:    strings.TrimRight(env.GetEnv("CRYPTO_API_BASE_URL", defaultCryptoAPIBaseURL), "/"),
		WebhookSecret: strings.TrimSpace(env.GetEnv("CRYPTO_WEBHOOK_SECRET", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCharge creates a hosted crypto charge and returns its payment page
// URL and charge code. amount is in minor units of currency.
func (c *CryptoClient) CreateCharge(ctx context.Context, name, description string, amount int64, currency string, metadata map[string]string) (*CryptoCharge, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("CRYPTO_API_KEY is not configured")
	}
	if amount <= 0 {
		return nil, errors.New("charge amount must be positive")
	}

	reqBody := map[string]any{
		"name":         name,
		"description":  description,
		"pricing_type": "fixed_price",
		"local_price": map[string]string{
			"amount":   formatMinorUnits(amount),
			"currency": strings.ToUpper(currency),
		},
		"metadata": metadata,
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/charges", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-CC-Api-Key", c.APIKey)
	req.Header.Set("X-CC-Version", "2018-03-22")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("crypto charge request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		Data CryptoCharge `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Data.Code) == "" {
		return nil, errors.New("crypto charge response missing code")
	}
	return &out.Data, nil
}

// ParseCryptoWebhookEvent decodes the webhook envelope into the inner event.
func ParseCryptoWebhookEvent(payload []byte) (*CryptoWebhookEvent, error) {
	var raw struct {
		Event struct {
			ID   string          `json:"id"`
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		} `json:"event"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.Event.Type) == "" {
		return nil, errors.New("crypto webhook payload missing event type")
	}

	out := &CryptoWebhookEvent{
		EventID: strings.TrimSpace(raw.Event.ID),
		Type:    strings.TrimSpace(raw.Event.Type),
	}
	if len(raw.Event.Data) > 0 {
		if err := json.Unmarshal(raw.Event.Data, &out.Charge); err != nil {
			return nil, fmt.Errorf("invalid crypto charge data: %w", err)
		}
	}
	return out, nil
}

// CryptoProcessor turns verified crypto webhook events into purchase records.
type CryptoProcessor struct {
	svc    *Service
	logger zerolog.Logger
}

func NewCryptoProcessor(svc *Service, logger zerolog.Logger) *CryptoProcessor {
	return &CryptoProcessor{
		svc:    svc,
		logger: logger.With().Str("component", "crypto").Logger(),
	}
}

// Process records confirmed and failed charges. Other charge lifecycle
// events (created, pending, delayed) carry no state the gallery needs.
func (p *CryptoProcessor) Process(ctx context.Context, event *CryptoWebhookEvent) error {
	switch event.Type {
	case "charge:confirmed", "charge:resolved":
		return p.recordCharge(ctx, event, models.PaymentStatusCompleted)
	case "charge:failed":
		return p.recordCharge(ctx, event, models.PaymentStatusFailed)
	default:
		p.logger.Info().Str("event_type", event.Type).Msg("crypto webhook event needs no action")
		return nil
	}
}

func (p *CryptoProcessor) recordCharge(ctx context.Context, event *CryptoWebhookEvent, status string) error {
	charge := event.Charge
	if strings.TrimSpace(charge.Code) == "" {
		return errors.New("crypto charge missing code")
	}

	imageID := metaImageID(charge.Metadata)
	if imageID == 0 {
		p.logger.Warn().Str("charge_code", charge.Code).Msg("crypto charge without image_id metadata, dropping")
		return nil
	}

	var buyerID *uint
	if uid := metaUserID(charge.Metadata); uid != 0 {
		buyerID = &uid
	}

	purchasedAt := time.Now()
	if t := parseRFC3339(charge.CreatedAt); t != nil {
		purchasedAt = *t
	}

	created, _, err := p.svc.RecordPurchase(ctx, NormalizedPurchase{
		UserID:            buyerID,
		ImageID:           imageID,
		LicenseType:       charge.Metadata["license_type"],
		AmountPaid:        parseMinorUnits(charge.Pricing.Local.Amount),
		Currency:          charge.Pricing.Local.Currency,
		PaymentMethod:     models.PaymentProviderCrypto,
		ProviderSessionID: charge.Code,
		PaymentStatus:     status,
		PurchasedAt:       purchasedAt,
	})
	if err != nil {
		return err
	}
	if !created {
		p.logger.Info().Str("charge_code", charge.Code).Msg("purchase already recorded for crypto charge")
	}
	return nil
}

// formatMinorUnits renders minor units as the decimal string the charge API
// expects, e.g. 1999 -> "19.99".
func formatMinorUnits(amount int64) string {
	return strconv.FormatInt(amount/100, 10) + "." + fmt.Sprintf("%02d", amount%100)
}

// parseMinorUnits converts a decimal amount string back into minor units.
func parseMinorUnits(s string) int64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(v * 100))
}
