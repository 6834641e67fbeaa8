package usage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pixmart/pixmart/app/models"
)

type fakeDownloadRepo struct {
	rows map[string]*models.Download
}

func newFakeDownloadRepo() *fakeDownloadRepo {
	return &fakeDownloadRepo{rows: map[string]*models.Download{}}
}

func key(d *models.Download) string {
	return fmt.Sprintf("%d|%d|%d-%d", d.UserID, d.ImageID, d.Year, d.Month)
}

func (f *fakeDownloadRepo) CreateIfNotExists(d *models.Download) (bool, error) {
	k := key(d)
	if _, ok := f.rows[k]; ok {
		return false, nil
	}
	cp := *d
	f.rows[k] = &cp
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
	var last *time.Time
	for _, d := range f.rows {
		if d.UserID != userID {
			continue
		}
		t := d.DownloadedAt
		if last == nil || t.After(*last) {
			last = &t
		}
	}
	return last, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecordDownloadCountsOncePerImagePerMonth(t *testing.T) {
	repo := newFakeDownloadRepo()
	tracker := NewTracker(repo)
	tracker.Now = fixedClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if err := tracker.RecordDownload(ctx, 1, 10, models.DownloadTypeSubscription); err != nil {
		t.Fatalf("RecordDownload: %v", err)
	}
	// Same image again in the same month: already counted.
	if err := tracker.RecordDownload(ctx, 1, 10, models.DownloadTypeSubscription); err != nil {
		t.Fatalf("repeat RecordDownload: %v", err)
	}
	if err := tracker.RecordDownload(ctx, 1, 11, models.DownloadTypeSubscription); err != nil {
		t.Fatalf("RecordDownload second image: %v", err)
	}

	count, err := tracker.MonthToDateCount(ctx, 1)
	if err != nil {
		t.Fatalf("MonthToDateCount: %v", err)
	}
	if count != 2 {
		t.Errorf("month-to-date count = %d, want 2", count)
	}
}

func TestMonthBoundaryAttribution(t *testing.T) {
	repo := newFakeDownloadRepo()
	tracker := NewTracker(repo)
	ctx := context.Background()

	tracker.Now = fixedClock(time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC))
	if err := tracker.RecordDownload(ctx, 2, 10, models.DownloadTypeSubscription); err != nil {
		t.Fatalf("RecordDownload: %v", err)
	}

	tracker.Now = fixedClock(time.Date(2026, 2, 1, 0, 1, 0, 0, time.UTC))
	if err := tracker.RecordDownload(ctx, 2, 10, models.DownloadTypeSubscription); err != nil {
		t.Fatalf("RecordDownload in new month: %v", err)
	}

	count, err := tracker.MonthToDateCount(ctx, 2)
	if err != nil {
		t.Fatalf("MonthToDateCount: %v", err)
	}
	if count != 1 {
		t.Errorf("february count = %d, want 1", count)
	}

	stats, err := tracker.AllTimeStats(ctx, 2)
	if err != nil {
		t.Fatalf("AllTimeStats: %v", err)
	}
	if stats.TotalDownloads != 2 {
		t.Errorf("total downloads = %d, want 2", stats.TotalDownloads)
	}
	if stats.LastDownloadedAt == nil || stats.LastDownloadedAt.Month() != time.February {
		t.Errorf("last download = %v, want february", stats.LastDownloadedAt)
	}
}

func TestTrackerValidatesIDs(t *testing.T) {
	tracker := NewTracker(newFakeDownloadRepo())
	ctx := context.Background()

	if err := tracker.RecordDownload(ctx, 0, 1, models.DownloadTypeSubscription); err == nil {
		t.Error("expected error for zero user id")
	}
	if err := tracker.RecordDownload(ctx, 1, 0, models.DownloadTypeSubscription); err == nil {
		t.Error("expected error for zero image id")
	}
	if _, err := tracker.MonthToDateCount(ctx, 0); err == nil {
		t.Error("expected error for zero user id")
	}
	if _, err := tracker.AllTimeStats(ctx, 0); err == nil {
		t.Error("expected error for zero user id")
	}
}
