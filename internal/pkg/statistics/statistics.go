package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/internal/pkg/cache"
	"github.com/pixmart/pixmart/internal/pkg/database"
)

const (
	CacheKeyImagesTotal = "statistics:images:total"
	CacheKeyImagesDaily = "statistics:images:daily:%s" // format with date YYYY-MM-DD
	CacheKeyUsers       = "statistics:users:total"
	CacheExpiration     = 30 * time.Minute
)

// StatisticsData holds the gallery-wide counters shown on the landing page.
type StatisticsData struct {
	TodayImages int `json:"today_images"`
	TotalUsers  int `json:"total_users"`
	TotalImages int `json:"total_images"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// UpdateCacheIfNeeded refreshes the cached counters when they are stale.
func UpdateCacheIfNeeded() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()
	if time.Since(lastCacheUpdate) <= cacheUpdateInterval {
		return
	}
	if err := UpdateStatisticsCache(); err != nil {
		log.Printf("Error updating statistics cache: %v", err)
		return
	}
	lastCacheUpdate = time.Now()
}

// UpdateStatisticsCache recounts and stores all statistics in the cache.
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalImages int64
	if err := db.Model(&models.Image{}).Count(&totalImages).Error; err != nil {
		return err
	}

	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	var todayImages int64
	if err := db.Model(&models.Image{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayImages).Error; err != nil {
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	if err := cache.Set(CacheKeyImagesTotal, strconv.FormatInt(totalImages, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(fmt.Sprintf(CacheKeyImagesDaily, today), strconv.FormatInt(todayImages, 10), CacheExpiration); err != nil {
		return err
	}
	return cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration)
}

// GetTotalImages returns the total image count from cache, recounting on miss.
func GetTotalImages() int {
	return cachedCount(CacheKeyImagesTotal, func() int64 {
		var count int64
		if err := database.GetDB().Model(&models.Image{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total images: %v", err)
			return 0
		}
		return count
	})
}

// GetTodayImages returns the number of images uploaded today.
func GetTodayImages() int {
	today := time.Now().Format("2006-01-02")
	return cachedCount(fmt.Sprintf(CacheKeyImagesDaily, today), func() int64 {
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)
		var count int64
		if err := database.GetDB().Model(&models.Image{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("Error counting today's images: %v", err)
			return 0
		}
		return count
	})
}

// GetTotalUsers returns the total user count from cache, recounting on miss.
func GetTotalUsers() int {
	return cachedCount(CacheKeyUsers, func() int64 {
		var count int64
		if err := database.GetDB().Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}
		return count
	})
}

func cachedCount(key string, recount func() int64) int {
	val, err := cache.Get(key)
	if err != nil {
		count := recount()
		if err := cache.Set(key, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching %s: %v", key, err)
		}
		return int(count)
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return int(count)
}

// GetStatisticsData returns all statistics, refreshing the cache as needed.
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()
	return StatisticsData{
		TodayImages: GetTodayImages(),
		TotalUsers:  GetTotalUsers(),
		TotalImages: GetTotalImages(),
	}
}
