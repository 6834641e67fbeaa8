package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pixmart/pixmart/internal/pkg/plans"
)

// HandlePlansList returns the static plan catalog. Provider price references
// stay server-side; clients only ever see the public fields.
func HandlePlansList(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"plans": plans.Catalog()})
}
