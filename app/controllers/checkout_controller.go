package controllers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/app/repository"
	"github.com/pixmart/pixmart/internal/pkg/billing"
	"github.com/pixmart/pixmart/internal/pkg/database"
	"github.com/pixmart/pixmart/internal/pkg/env"
	"github.com/pixmart/pixmart/internal/pkg/logging"
	"github.com/pixmart/pixmart/internal/pkg/plans"
	"github.com/pixmart/pixmart/internal/pkg/usercontext"
)

type subscriptionCheckoutRequest struct {
	Provider string `json:"provider" form:"provider"`
	Plan     string `json:"plan" form:"plan"`
	Interval string `json:"interval" form:"interval"`
}

type purchaseCheckoutRequest struct {
	Provider    string `json:"provider" form:"provider"`
	ImageUUID   string `json:"image_uuid" form:"image_uuid"`
	LicenseType string `json:"license_type" form:"license_type"`
}

// HandleCheckoutSubscription starts a subscription checkout with the chosen
// provider and returns the URL the client must redirect to.
func HandleCheckoutSubscription(c *fiber.Ctx) error {
	var req subscriptionCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	planType := plans.Normalize(req.Plan)
	plan, ok := plans.Get(planType)
	if !ok || planType == plans.PlanFree {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_plan"})
	}
	var interval string
	switch strings.ToLower(req.Interval) {
	case "", "month", "monthly":
		interval = models.BillingIntervalMonth
	case "year", "yearly":
		interval = models.BillingIntervalYear
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_interval"})
	}

	userCtx := usercontext.GetUserContext(c)
	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if env.PaymentsSimulated() {
		return c.JSON(fiber.Map{
			"checkout_url": simulatedCheckoutURL("subscription", string(planType), interval),
			"simulated":    true,
		})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	switch strings.ToLower(req.Provider) {
	case models.PaymentProviderStripe:
		url, err := billing.NewStripeProcessor(svc, logging.New("stripe")).
			CreateSubscriptionCheckout(c.Context(), user, planType, interval)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "checkout_failed"})
		}
		return c.JSON(fiber.Map{"checkout_url": url})
	case models.PaymentProviderPayPal:
		planID := plan.PayPalPlanMonthly
		if interval == models.BillingIntervalYear {
			planID = plan.PayPalPlanYearly
		}
		if planID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "plan_not_available"})
		}
		base := env.GetEnv("PUBLIC_URL", "http://localhost:8080")
		url, err := billing.NewPayPalClientFromEnv().CreateSubscriptionApproval(
			c.Context(), planID,
			fmt.Sprintf("%d", user.ID),
			base+"/billing/success", base+"/billing/cancel",
		)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "checkout_failed"})
		}
		return c.JSON(fiber.Map{"checkout_url": url})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_provider"})
	}
}

// HandleCheckoutPurchase starts a one-time purchase checkout for a single
// image, via Stripe or a crypto charge.
func HandleCheckoutPurchase(c *fiber.Ctx) error {
	var req purchaseCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	img, err := repository.GetGlobalFactory().GetImageRepository().GetByUUID(strings.TrimSpace(req.ImageUUID))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "image_not_found"})
	}
	if img.PriceAmount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image_not_for_sale"})
	}

	licenseType := req.LicenseType
	if licenseType == "" {
		licenseType = models.LicenseTypeStandard
	}

	// Purchases work for anonymous buyers too; the webhook settles identity.
	var buyerID *uint
	if userCtx := usercontext.GetUserContext(c); userCtx.UserID != 0 {
		id := userCtx.UserID
		buyerID = &id
	}

	if env.PaymentsSimulated() {
		return c.JSON(fiber.Map{
			"checkout_url": simulatedCheckoutURL("purchase", img.UUID, licenseType),
			"simulated":    true,
		})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	switch strings.ToLower(req.Provider) {
	case models.PaymentProviderStripe:
		url, err := billing.NewStripeProcessor(svc, logging.New("stripe")).
			CreatePurchaseCheckout(c.Context(), buyerID, img, licenseType)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "checkout_failed"})
		}
		return c.JSON(fiber.Map{"checkout_url": url})
	case models.PaymentProviderCrypto:
		metadata := map[string]string{
			"image_id":     fmt.Sprintf("%d", img.ID),
			"license_type": licenseType,
		}
		if buyerID != nil {
			metadata["user_id"] = fmt.Sprintf("%d", *buyerID)
		}
		charge, err := billing.NewCryptoClientFromEnv().CreateCharge(
			c.Context(), img.Title, "License for "+img.Title,
			img.PriceAmount, img.Currency, metadata,
		)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "checkout_failed"})
		}
		return c.JSON(fiber.Map{"checkout_url": charge.HostedURL, "charge_code": charge.Code})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_provider"})
	}
}

func simulatedCheckoutURL(kind, ref, detail string) string {
	base := env.GetEnv("PUBLIC_URL", "http://localhost:8080")
	return fmt.Sprintf("%s/checkout/simulated?kind=%s&ref=%s&detail=%s", base, kind, ref, detail)
}
