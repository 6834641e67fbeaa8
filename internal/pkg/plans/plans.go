package plans

import (
	"strings"
	"sync"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/internal/pkg/env"
)

type PlanType string

const (
	PlanFree       PlanType = "free"
	PlanStandard   PlanType = "standard"
	PlanPremium    PlanType = "premium"
	PlanCommercial PlanType = "commercial"
)

// Plan describes a subscription tier. MonthlyDownloadLimit is the enforced
// quota and is intentionally separate from the display Features copy, so
// marketing text changes never alter enforcement.
type Plan struct {
	Type         PlanType `json:"type"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	PriceMonthly int64    `json:"price_monthly"`
	PriceYearly  int64    `json:"price_yearly"`
	Features     []string `json:"features"`

	MonthlyDownloadLimit int  `json:"monthly_download_limit"`
	Unlimited            bool `json:"unlimited"`

	StripePriceMonthly string `json:"-"`
	StripePriceYearly  string `json:"-"`
	PayPalPlanMonthly  string `json:"-"`
	PayPalPlanYearly   string `json:"-"`
}

var (
	mu      sync.RWMutex
	catalog []Plan
)

// Setup builds the static plan catalog. Provider price references come from
// the environment so the same catalog works across Stripe/PayPal accounts.
func Setup() {
	mu.Lock()
	defer mu.Unlock()
	catalog = []Plan{
		{
			Type:         PlanStandard,
			Name:         "Standard",
			Description:  "For hobby photographers and casual use",
			PriceMonthly: 999,
			PriceYearly:  9990,
			Features: []string{
				"Download up to 50 images per month",
				"Standard license",
				"Access to the full gallery",
			},
			MonthlyDownloadLimit: 50,
			StripePriceMonthly:   env.GetEnv("STRIPE_PRICE_STANDARD_MONTHLY", "price_standard_month"),
			StripePriceYearly:    env.GetEnv("STRIPE_PRICE_STANDARD_YEARLY", "price_standard_year"),
			PayPalPlanMonthly:    env.GetEnv("PAYPAL_PLAN_STANDARD_MONTHLY", "P-STANDARD-MONTH"),
			PayPalPlanYearly:     env.GetEnv("PAYPAL_PLAN_STANDARD_YEARLY", "P-STANDARD-YEAR"),
		},
		{
			Type:         PlanPremium,
			Name:         "Premium",
			Description:  "Unlimited downloads for professionals",
			PriceMonthly: 2499,
			PriceYearly:  24990,
			Features: []string{
				"Unlimited downloads",
				"Extended license",
				"Priority support",
			},
			Unlimited:          true,
			StripePriceMonthly: env.GetEnv("STRIPE_PRICE_PREMIUM_MONTHLY", "price_premium_month"),
			StripePriceYearly:  env.GetEnv("STRIPE_PRICE_PREMIUM_YEARLY", "price_premium_year"),
			PayPalPlanMonthly:  env.GetEnv("PAYPAL_PLAN_PREMIUM_MONTHLY", "P-PREMIUM-MONTH"),
			PayPalPlanYearly:   env.GetEnv("PAYPAL_PLAN_PREMIUM_YEARLY", "P-PREMIUM-YEAR"),
		},
		{
			Type:         PlanCommercial,
			Name:         "Commercial",
			Description:  "Unlimited downloads with a commercial license",
			PriceMonthly: 4999,
			PriceYearly:  49990,
			Features: []string{
				"Unlimited downloads",
				"Commercial license",
				"Team billing",
				"Priority support",
			},
			Unlimited:          true,
			StripePriceMonthly: env.GetEnv("STRIPE_PRICE_COMMERCIAL_MONTHLY", "price_commercial_month"),
			StripePriceYearly:  env.GetEnv("STRIPE_PRICE_COMMERCIAL_YEARLY", "price_commercial_year"),
			PayPalPlanMonthly:  env.GetEnv("PAYPAL_PLAN_COMMERCIAL_MONTHLY", "P-COMMERCIAL-MONTH"),
			PayPalPlanYearly:   env.GetEnv("PAYPAL_PLAN_COMMERCIAL_YEARLY", "P-COMMERCIAL-YEAR"),
		},
	}
}

// Catalog returns the ordered plan catalog.
func Catalog() []Plan {
	mu.RLock()
	loaded := catalog != nil
	mu.RUnlock()
	if !loaded {
		Setup()
	}

	mu.RLock()
	defer mu.RUnlock()
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// Get returns the catalog entry for a plan type.
func Get(t PlanType) (Plan, bool) {
	for _, p := range Catalog() {
		if p.Type == t {
			return p, true
		}
	}
	return Plan{}, false
}

// ResolvePriceRef maps a provider price/plan reference to the internal plan
// type and billing interval. Unknown references return ok=false; the caller
// decides whether that drops the event or falls back to free.
func ResolvePriceRef(provider, ref string) (PlanType, string, bool) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return PlanFree, models.BillingIntervalUnknown, false
	}
	for _, p := range Catalog() {
		switch provider {
		case models.PaymentProviderStripe:
			if ref == p.StripePriceMonthly {
				return p.Type, models.BillingIntervalMonth, true
			}
			if ref == p.StripePriceYearly {
				return p.Type, models.BillingIntervalYear, true
			}
		case models.PaymentProviderPayPal:
			if ref == p.PayPalPlanMonthly {
				return p.Type, models.BillingIntervalMonth, true
			}
			if ref == p.PayPalPlanYearly {
				return p.Type, models.BillingIntervalYear, true
			}
		}
	}
	return PlanFree, models.BillingIntervalUnknown, false
}

// Normalize maps a stored plan string onto a known plan type.
func Normalize(plan string) PlanType {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanStandard):
		return PlanStandard
	case string(PlanPremium):
		return PlanPremium
	case string(PlanCommercial):
		return PlanCommercial
	default:
		return PlanFree
	}
}

// Rank orders plan types so reconciliation can pick the best entitling plan.
func Rank(t PlanType) int {
	switch t {
	case PlanCommercial:
		return 3
	case PlanPremium:
		return 2
	case PlanStandard:
		return 1
	default:
		return 0
	}
}
