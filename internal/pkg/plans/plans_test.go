package plans

import (
	"testing"

	"github.com/pixmart/pixmart/app/models"
)

func TestCatalogContainsPaidTiers(t *testing.T) {
	catalog := Catalog()
	if len(catalog) != 3 {
		t.Fatalf("catalog size = %d, want 3", len(catalog))
	}

	standard, ok := Get(PlanStandard)
	if !ok {
		t.Fatal("standard plan missing")
	}
	if standard.Unlimited {
		t.Error("standard plan must be limited")
	}
	if standard.MonthlyDownloadLimit <= 0 {
		t.Error("standard plan needs a positive monthly limit")
	}

	for _, pt := range []PlanType{PlanPremium, PlanCommercial} {
		plan, ok := Get(pt)
		if !ok {
			t.Fatalf("%s plan missing", pt)
		}
		if !plan.Unlimited {
			t.Errorf("%s plan must be unlimited", pt)
		}
	}

	if _, ok := Get(PlanFree); ok {
		t.Error("free tier is implicit and must not be purchasable")
	}
}

func TestResolvePriceRef(t *testing.T) {
	standard, _ := Get(PlanStandard)

	pt, interval, ok := ResolvePriceRef(models.PaymentProviderStripe, standard.StripePriceMonthly)
	if !ok || pt != PlanStandard || interval != models.BillingIntervalMonth {
		t.Errorf("stripe monthly resolved to (%v, %v, %v)", pt, interval, ok)
	}

	pt, interval, ok = ResolvePriceRef(models.PaymentProviderStripe, standard.StripePriceYearly)
	if !ok || pt != PlanStandard || interval != models.BillingIntervalYear {
		t.Errorf("stripe yearly resolved to (%v, %v, %v)", pt, interval, ok)
	}

	pt, _, ok = ResolvePriceRef(models.PaymentProviderPayPal, standard.PayPalPlanMonthly)
	if !ok || pt != PlanStandard {
		t.Errorf("paypal monthly resolved to (%v, %v)", pt, ok)
	}

	// A Stripe ref queried under the wrong provider must not match.
	if _, _, ok := ResolvePriceRef(models.PaymentProviderPayPal, standard.StripePriceMonthly); ok {
		t.Error("stripe price ref must not resolve under paypal")
	}
	if _, _, ok := ResolvePriceRef(models.PaymentProviderStripe, "price_unknown"); ok {
		t.Error("unknown price ref must not resolve")
	}
	if _, _, ok := ResolvePriceRef(models.PaymentProviderStripe, ""); ok {
		t.Error("empty price ref must not resolve")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want PlanType
	}{
		{"standard", PlanStandard},
		{"  Premium ", PlanPremium},
		{"COMMERCIAL", PlanCommercial},
		{"free", PlanFree},
		{"", PlanFree},
		{"nonsense", PlanFree},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRankOrdering(t *testing.T) {
	if !(Rank(PlanCommercial) > Rank(PlanPremium) &&
		Rank(PlanPremium) > Rank(PlanStandard) &&
		Rank(PlanStandard) > Rank(PlanFree)) {
		t.Error("plan ranks must be strictly ordered commercial > premium > standard > free")
	}
}
