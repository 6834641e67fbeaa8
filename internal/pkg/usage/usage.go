package usage

import (
	"context"
	"errors"
	"time"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/app/repository"
)

// Stats aggregates a user's all-time download history.
type Stats struct {
	TotalDownloads   int64      `json:"total_downloads"`
	LastDownloadedAt *time.Time `json:"last_downloaded_at,omitempty"`
}

// Tracker records completed downloads and answers usage queries for quota
// enforcement. Month attribution is derived from Now at record time, so a
// download late on Jan 31 counts for January and one early on Feb 1 for
// February.
type Tracker struct {
	repo repository.DownloadRepository

	// Now is the clock used for month attribution; tests override it.
	Now func() time.Time
}

// NewTracker creates a usage tracker from an injected repository.
func NewTracker(repo repository.DownloadRepository) *Tracker {
	return &Tracker{repo: repo, Now: time.Now}
}

// RecordDownload stores a download record for the current month. A conflict
// with an existing (user, image, year, month) row means the download was
// already counted and is treated as success.
func (t *Tracker) RecordDownload(ctx context.Context, userID, imageID uint, downloadType string) error {
	_ = ctx
	if userID == 0 || imageID == 0 {
		return errors.New("user_id and image_id are required")
	}

	now := t.Now()
	d := &models.Download{
		UserID:       userID,
		ImageID:      imageID,
		DownloadType: downloadType,
		Year:         now.Year(),
		Month:        int(now.Month()),
		DownloadedAt: now,
	}
	_, err := t.repo.CreateIfNotExists(d)
	return err
}

// MonthToDateCount counts downloads for the current calendar month.
func (t *Tracker) MonthToDateCount(ctx context.Context, userID uint) (int64, error) {
	_ = ctx
	if userID == 0 {
		return 0, errors.New("user_id is required")
	}
	now := t.Now()
	return t.repo.CountByUserAndPeriod(userID, now.Year(), int(now.Month()))
}

// AllTimeStats returns the total download count and most recent download time.
func (t *Tracker) AllTimeStats(ctx context.Context, userID uint) (*Stats, error) {
	_ = ctx
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}

	total, err := t.repo.CountByUser(userID)
	if err != nil {
		return nil, err
	}
	last, err := t.repo.LastDownloadedAt(userID)
	if err != nil {
		return nil, err
	}
	return &Stats{TotalDownloads: total, LastDownloadedAt: last}, nil
}
