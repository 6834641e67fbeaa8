package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/app/repository"
	"github.com/pixmart/pixmart/internal/pkg/entitlements"
	"github.com/pixmart/pixmart/internal/pkg/metrics/counter"
	"github.com/pixmart/pixmart/internal/pkg/usage"
	"github.com/pixmart/pixmart/internal/pkg/usercontext"
)

func newAccessEvaluator() *entitlements.Evaluator {
	factory := repository.GetGlobalFactory()
	return entitlements.NewEvaluator(
		factory.GetSubscriptionRepository(),
		factory.GetPurchaseRepository(),
		usage.NewTracker(factory.GetDownloadRepository()),
	)
}

// HandleImageAccess reports what the current visitor may do with an image.
// Works for anonymous visitors too, so it sits on the public router.
func HandleImageAccess(c *fiber.Ctx) error {
	img, err := findImageByUUIDParam(c)
	if err != nil {
		return err
	}

	userCtx := usercontext.GetUserContext(c)

	// Owners always get everything; no need to consult billing state.
	if userCtx.UserID != 0 && userCtx.UserID == img.UserID {
		return c.JSON(&entitlements.AccessDecision{
			CanView:     true,
			CanDownload: true,
			AccessType:  entitlements.AccessPurchased,
		})
	}

	decision, err := newAccessEvaluator().Evaluate(c.Context(), userCtx.UserID, img.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "access_check_failed"})
	}
	return c.JSON(decision)
}

// HandleImageDownload evaluates access, records the download and hands the
// caller the object. Every denied path answers with the decision body so the
// client can explain itself to the user.
func HandleImageDownload(c *fiber.Ctx) error {
	img, err := findImageByUUIDParam(c)
	if err != nil {
		return err
	}

	userCtx := usercontext.GetUserContext(c)

	decision := ownerDecision(userCtx.UserID, img)
	if decision == nil {
		decision, err = newAccessEvaluator().Evaluate(c.Context(), userCtx.UserID, img.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "access_check_failed"})
		}
	}

	if !decision.CanDownload {
		status := fiber.StatusForbidden
		if decision.Reason == entitlements.ReasonPurchaseRequired {
			status = fiber.StatusPaymentRequired
		}
		if decision.Reason == entitlements.ReasonLoginRequired {
			status = fiber.StatusUnauthorized
		}
		return c.Status(status).JSON(decision)
	}

	// Anonymous downloads never happen (CanDownload is false without a
	// session), but keep the guard in case routing changes.
	if userCtx.UserID != 0 {
		tracker := usage.NewTracker(repository.GetGlobalFactory().GetDownloadRepository())
		if err := tracker.RecordDownload(c.Context(), userCtx.UserID, img.ID, downloadTypeFor(decision)); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "download_failed"})
		}
	}
	if err := counter.AddImageDownload(img.ID); err != nil {
		log.Warnf("download counter increment failed: %v", err)
	}

	body, contentType, err := imageStore.Get(c.Context(), img.ObjectKey)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "storage_failed"})
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+img.FileName+`"`)
	return c.SendStream(body)
}

func ownerDecision(userID uint, img *models.Image) *entitlements.AccessDecision {
	if userID == 0 || userID != img.UserID {
		return nil
	}
	return &entitlements.AccessDecision{
		CanView:     true,
		CanDownload: true,
		AccessType:  entitlements.AccessPurchased,
	}
}

func downloadTypeFor(decision *entitlements.AccessDecision) string {
	switch decision.AccessType {
	case entitlements.AccessSubscription:
		return models.DownloadTypeSubscription
	case entitlements.AccessPurchased:
		return models.DownloadTypePurchase
	default:
		return models.DownloadTypeFree
	}
}
