package controllers

import (
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/app/repository"
	"github.com/pixmart/pixmart/internal/pkg/metrics/counter"
	"github.com/pixmart/pixmart/internal/pkg/objectstore"
	"github.com/pixmart/pixmart/internal/pkg/statistics"
	"github.com/pixmart/pixmart/internal/pkg/upload"
	"github.com/pixmart/pixmart/internal/pkg/usercontext"
)

var imageStore objectstore.Store

// SetImageStore injects the object storage backend at startup.
func SetImageStore(s objectstore.Store) {
	imageStore = s
}

const maxUploadSize = 50 * 1024 * 1024 // 50 MB

// imageResponse is the public JSON shape of a gallery image.
func imageResponse(img *models.Image) fiber.Map {
	return fiber.Map{
		"uuid":           img.UUID,
		"title":          img.Title,
		"file_name":      img.FileName,
		"file_type":      img.FileType,
		"width":          img.Width,
		"height":         img.Height,
		"is_public":      img.IsPublic,
		"view_count":     img.ViewCount,
		"download_count": img.DownloadCount,
		"price_amount":   img.PriceAmount,
		"currency":       img.Currency,
		"license_type":   img.LicenseType,
		"created_at":     img.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// HandleGalleryList returns the paginated public gallery.
func HandleGalleryList(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetImageRepository()

	images, err := repo.GetPublicImages(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "gallery_failed"})
	}
	total, err := repo.Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "gallery_failed"})
	}

	items := make([]fiber.Map, 0, len(images))
	for i := range images {
		items = append(items, imageResponse(&images[i]))
	}
	return c.JSON(fiber.Map{
		"images": items,
		"total":  total,
	})
}

// HandleGalleryStats returns the cached gallery-wide counters.
func HandleGalleryStats(c *fiber.Ctx) error {
	return c.JSON(statistics.GetStatisticsData())
}

// HandleImageGet returns one image's metadata and bumps its view counter.
func HandleImageGet(c *fiber.Ctx) error {
	img, err := findImageByUUIDParam(c)
	if err != nil {
		return err
	}

	userCtx := usercontext.GetUserContext(c)
	if !img.IsPublic && img.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	if err := counter.AddImageView(img.ID); err != nil {
		// Counter loss is tolerable; the image itself must still render.
		log.Warnf("view counter increment failed: %v", err)
	}
	return c.JSON(imageResponse(img))
}

// HandleImageUpload stores a new image: object bytes to S3, metadata row to
// the database.
func HandleImageUpload(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file_required"})
	}
	if fileHeader.Size > maxUploadSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "file_too_large"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upload_failed"})
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := file.Read(head)
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if _, err := upload.ValidateImageBySniff(fileHeader.Filename, head[:n]); err != nil {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "unsupported_file_type"})
	}
	if _, err := file.Seek(0, 0); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upload_failed"})
	}

	img := &models.Image{
		UserID:      userCtx.UserID,
		Title:       strings.TrimSpace(c.FormValue("title", fileHeader.Filename)),
		FileName:    fileHeader.Filename,
		FileSize:    fileHeader.Size,
		FileType:    objectstore.ContentTypeForExt(ext),
		IsPublic:    c.FormValue("is_public", "true") != "false",
		Currency:    strings.ToLower(c.FormValue("currency", "eur")),
		LicenseType: c.FormValue("license_type", models.LicenseTypeStandard),
	}
	if raw := c.FormValue("price_amount", "0"); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || amount < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_price"})
		}
		img.PriceAmount = amount
	}

	if cfg, _, err := image.DecodeConfig(file); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}
	if _, err := file.Seek(0, 0); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upload_failed"})
	}

	// The UUID doubles as the object identity, so assign it before the
	// object key is built rather than waiting for the insert hook.
	img.UUID = uuid.New().String()
	img.ObjectKey = objectstore.BuildObjectKey(img.UUID, ext, time.Now())

	if err := imageStore.Upload(c.Context(), img.ObjectKey, img.FileType, img.FileSize, file); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "storage_failed"})
	}

	if err := repository.GetGlobalFactory().GetImageRepository().Create(img); err != nil {
		// Roll back the orphaned object; the row is the source of truth.
		_ = imageStore.Delete(c.Context(), img.ObjectKey)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upload_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(imageResponse(img))
}

// HandleImageDelete removes an image; only the owner (or an admin) may.
func HandleImageDelete(c *fiber.Ctx) error {
	img, err := findImageByUUIDParam(c)
	if err != nil {
		return err
	}

	userCtx := usercontext.GetUserContext(c)
	if img.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}

	if err := repository.GetGlobalFactory().GetImageRepository().Delete(img.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "delete_failed"})
	}
	if err := imageStore.Delete(c.Context(), img.ObjectKey); err != nil {
		log.Warnf("object delete failed for %s: %v", img.ObjectKey, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleMyImages lists the logged-in user's own images.
func HandleMyImages(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	offset, limit := parsePagination(c)

	repo := repository.GetGlobalFactory().GetImageRepository()
	images, err := repo.GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "gallery_failed"})
	}
	total, err := repo.CountByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "gallery_failed"})
	}

	items := make([]fiber.Map, 0, len(images))
	for i := range images {
		items = append(items, imageResponse(&images[i]))
	}
	return c.JSON(fiber.Map{"images": items, "total": total})
}

func findImageByUUIDParam(c *fiber.Ctx) (*models.Image, error) {
	id := strings.TrimSpace(c.Params("uuid"))
	if id == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_image_id"})
	}
	img, err := repository.GetGlobalFactory().GetImageRepository().GetByUUID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup_failed"})
	}
	return img, nil
}
