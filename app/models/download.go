package models

import "time"

const (
	DownloadTypeSubscription = "subscription"
	DownloadTypePurchase     = "purchase"
	DownloadTypeFree         = "free"
)

// Download records a completed image download. Year and month are derived
// from DownloadedAt at insert time; the unique index over
// (user_id, image_id, year, month) keeps repeat downloads of the same image
// within a month from counting against quota twice.
type Download struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index:ux_downloads_user_image_period,unique,priority:1;index:idx_downloads_user_period,priority:1" json:"user_id"`
	ImageID      uint      `gorm:"not null;index:ux_downloads_user_image_period,unique,priority:2" json:"image_id"`
	DownloadType string    `gorm:"type:varchar(20);not null;default:'subscription'" json:"download_type"`
	Year         int       `gorm:"not null;index:ux_downloads_user_image_period,unique,priority:3;index:idx_downloads_user_period,priority:2" json:"year"`
	Month        int       `gorm:"not null;index:ux_downloads_user_image_period,unique,priority:4;index:idx_downloads_user_period,priority:3" json:"month"`
	DownloadedAt time.Time `gorm:"type:timestamp;not null" json:"downloaded_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
