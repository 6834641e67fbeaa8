package entitlements

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/internal/pkg/plans"
	"github.com/pixmart/pixmart/internal/pkg/usage"
)

type fakeSubRepo struct {
	subs []models.Subscription
}

func (f *fakeSubRepo) Upsert(sub *models.Subscription) error {
	f.subs = append(f.subs, *sub)
	return nil
}

func (f *fakeSubRepo) GetByProviderSubscriptionID(provider, subID string) (*models.Subscription, error) {
	for i := range f.subs {
		if f.subs[i].Provider == provider && f.subs[i].ProviderSubscriptionID == subID {
			cp := f.subs[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSubRepo) UpdateStatusByProviderSubscriptionID(provider, subID, status string) (int64, error) {
	for i := range f.subs {
		if f.subs[i].Provider == provider && f.subs[i].ProviderSubscriptionID == subID {
			f.subs[i].Status = status
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeSubRepo) ListByUser(userID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeSubRepo) GetLatestEntitledByUser(userID uint, statuses []string) (*models.Subscription, error) {
	var best *models.Subscription
	for i := range f.subs {
		sub := &f.subs[i]
		if sub.UserID != userID {
			continue
		}
		entitled := false
		for _, st := range statuses {
			if sub.Status == st {
				entitled = true
				break
			}
		}
		if !entitled {
			continue
		}
		if best == nil || plans.Rank(plans.Normalize(sub.PlanType)) > plans.Rank(plans.Normalize(best.PlanType)) {
			best = sub
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

type fakePurchaseRepo struct {
	purchases []models.Purchase
}

func (f *fakePurchaseRepo) CreateIfNotExists(p *models.Purchase) (bool, *models.Purchase, error) {
	f.purchases = append(f.purchases, *p)
	return true, p, nil
}

func (f *fakePurchaseRepo) GetByProviderSessionID(sessionID string) (*models.Purchase, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePurchaseRepo) GetCompletedByUserAndImage(userID, imageID uint) (*models.Purchase, error) {
	for i := range f.purchases {
		p := &f.purchases[i]
		if p.UserID != nil && *p.UserID == userID && p.ImageID == imageID && p.PaymentStatus == models.PaymentStatusCompleted {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePurchaseRepo) ListByUser(userID uint) ([]models.Purchase, error) {
	return nil, nil
}

type fakeDownloadRepo struct {
	rows map[string]models.Download
}

func newFakeDownloadRepo() *fakeDownloadRepo {
	return &fakeDownloadRepo{rows: map[string]models.Download{}}
}

func (f *fakeDownloadRepo) CreateIfNotExists(d *models.Download) (bool, error) {
	k := fmt.Sprintf("%d|%d|%d-%d", d.UserID, d.ImageID, d.Year, d.Month)
	if _, ok := f.rows[k]; ok {
		return false, nil
	}
	f.rows[k] = *d
	return true, nil
}

func (f *fakeDownloadRepo) CountByUserAndPeriod(userID uint, year, month int) (int64, error) {
	var n int64
	for _, d := range f.rows {
		if d.UserID == userID && d.Year == year && d.Month == month {
			n++
		}
	}
	return n, nil
}

func (f *fakeDownloadRepo) CountByUser(userID uint) (int64, error) {
	var n int64
	for _, d := range f.rows {
		if d.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeDownloadRepo) LastDownloadedAt(userID uint) (*time.Time, error) {
	return nil, nil
}

type fixture struct {
	eval      *Evaluator
	subs      *fakeSubRepo
	purchases *fakePurchaseRepo
	downloads *fakeDownloadRepo
	tracker   *usage.Tracker

	// nextImageID hands out a distinct image per recorded download, even
	// across successive recordDownloads calls; the tracker dedupes repeat
	// downloads of the same image within a month.
	nextImageID uint
}

func newFixture() *fixture {
	f := &fixture{
		subs:      &fakeSubRepo{},
		purchases: &fakePurchaseRepo{},
		downloads: newFakeDownloadRepo(),
	}
	f.tracker = usage.NewTracker(f.downloads)
	f.eval = NewEvaluator(f.subs, f.purchases, f.tracker)
	return f
}

func (f *fixture) addSubscription(userID uint, planType plans.PlanType, status string) {
	_ = f.subs.Upsert(&models.Subscription{
		UserID:                 userID,
		Provider:               models.PaymentProviderStripe,
		ProviderSubscriptionID: fmt.Sprintf("sub_%d_%s", userID, planType),
		PlanType:               string(planType),
		Status:                 status,
	})
}

func (f *fixture) addPurchase(userID, imageID uint, status string) {
	uid := userID
	_, _, _ = f.purchases.CreateIfNotExists(&models.Purchase{
		UserID:            &uid,
		ImageID:           imageID,
		PaymentStatus:     status,
		ProviderSessionID: fmt.Sprintf("cs_%d_%d", userID, imageID),
	})
}

func (f *fixture) recordDownloads(t *testing.T, userID uint, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f.nextImageID++
		if err := f.tracker.RecordDownload(context.Background(), userID, 1000+f.nextImageID, models.DownloadTypeSubscription); err != nil {
			t.Fatalf("RecordDownload: %v", err)
		}
	}
}

func TestAnonymousUserCanViewButNotDownload(t *testing.T) {
	f := newFixture()

	d, err := f.eval.Evaluate(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.CanView {
		t.Error("anonymous users must be able to view")
	}
	if d.CanDownload {
		t.Error("anonymous users must not download")
	}
	if d.AccessType != AccessBlocked || d.Reason != ReasonLoginRequired {
		t.Errorf("decision = %+v", d)
	}
}

func TestFreeUserWithoutPurchaseIsBlockedFromDownload(t *testing.T) {
	f := newFixture()

	d, err := f.eval.Evaluate(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.CanDownload {
		t.Error("free user without purchase must not download")
	}
	if d.AccessType != AccessFree || d.Reason != ReasonPurchaseRequired {
		t.Errorf("decision = %+v", d)
	}
}

func TestPurchasedImageIsDownloadable(t *testing.T) {
	f := newFixture()
	f.addPurchase(1, 7, models.PaymentStatusCompleted)

	d, err := f.eval.Evaluate(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.CanDownload || d.AccessType != AccessPurchased {
		t.Errorf("decision = %+v", d)
	}

	// Pending purchases grant nothing.
	f2 := newFixture()
	f2.addPurchase(1, 7, models.PaymentStatusPending)
	d, err = f2.eval.Evaluate(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.CanDownload {
		t.Error("pending purchase must not grant download")
	}
}

func TestUnlimitedPlanAlwaysDownloads(t *testing.T) {
	f := newFixture()
	f.addSubscription(1, plans.PlanPremium, models.BillingStatusActive)
	f.recordDownloads(t, 1, 500)

	d, err := f.eval.Evaluate(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.CanDownload || d.AccessType != AccessSubscription {
		t.Errorf("decision = %+v", d)
	}
	if d.DownloadsRemaining != nil {
		t.Error("unlimited plans should not report a remaining count")
	}
}

func TestLimitedPlanEnforcesMonthlyQuota(t *testing.T) {
	f := newFixture()
	f.addSubscription(1, plans.PlanStandard, models.BillingStatusActive)
	plan, ok := plans.Get(plans.PlanStandard)
	if !ok {
		t.Fatal("standard plan missing from catalog")
	}

	f.recordDownloads(t, 1, plan.MonthlyDownloadLimit-1)
	d, err := f.eval.Evaluate(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.CanDownload {
		t.Fatal("one download should remain")
	}
	if d.DownloadsRemaining == nil || *d.DownloadsRemaining != 1 {
		t.Errorf("remaining = %v, want 1", d.DownloadsRemaining)
	}

	f.recordDownloads(t, 1, 1)
	d, err = f.eval.Evaluate(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Evaluate at limit: %v", err)
	}
	if d.CanDownload {
		t.Error("download at quota must be blocked")
	}
	if d.AccessType != AccessBlocked || d.Reason != ReasonLimitReached {
		t.Errorf("decision = %+v", d)
	}
	if !d.CanView {
		t.Error("quota exhaustion must not block viewing")
	}
}

func TestPastDueSubscriptionDoesNotEntitleDownloads(t *testing.T) {
	f := newFixture()
	f.addSubscription(1, plans.PlanPremium, models.BillingStatusPastDue)

	d, err := f.eval.Evaluate(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.CanDownload {
		t.Error("past_due subscription must not entitle downloads")
	}
	if d.AccessType != AccessFree {
		t.Errorf("access type = %q, want free", d.AccessType)
	}
}

func TestSubscriptionTakesPrecedenceOverPurchase(t *testing.T) {
	f := newFixture()
	f.addSubscription(1, plans.PlanStandard, models.BillingStatusActive)
	f.addPurchase(1, 7, models.PaymentStatusCompleted)

	plan, _ := plans.Get(plans.PlanStandard)
	f.recordDownloads(t, 1, plan.MonthlyDownloadLimit)

	// Even for the purchased image, the subscriber is evaluated under
	// subscription rules and hits the quota.
	d, err := f.eval.Evaluate(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.CanDownload {
		t.Error("subscription rules (including quota) take precedence over purchases")
	}
	if d.Reason != ReasonLimitReached {
		t.Errorf("reason = %q, want limit reached", d.Reason)
	}
}

func TestQuotaResetsWithNewMonth(t *testing.T) {
	f := newFixture()
	f.addSubscription(1, plans.PlanStandard, models.BillingStatusActive)
	plan, _ := plans.Get(plans.PlanStandard)

	f.tracker.Now = func() time.Time { return time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC) }
	f.recordDownloads(t, 1, plan.MonthlyDownloadLimit)

	d, err := f.eval.Evaluate(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Evaluate in january: %v", err)
	}
	if d.CanDownload {
		t.Fatal("january quota should be exhausted")
	}

	f.tracker.Now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	d, err = f.eval.Evaluate(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Evaluate in february: %v", err)
	}
	if !d.CanDownload {
		t.Error("quota must reset on the first of the month")
	}
	if d.DownloadsRemaining == nil || *d.DownloadsRemaining != plan.MonthlyDownloadLimit {
		t.Errorf("remaining = %v, want full quota", d.DownloadsRemaining)
	}
}
