package controllers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/pixmart/pixmart/internal/pkg/plans"
)

func TestHandlePlansList(t *testing.T) {
	plans.Setup()

	app := fiber.New()
	app.Get("/plans", HandlePlansList)

	resp, err := app.Test(httptest.NewRequest("GET", "/plans", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)

	var out struct {
		Plans []struct {
			Type         string `json:"type"`
			PriceMonthly int64  `json:"price_monthly"`
			Unlimited    bool   `json:"unlimited"`
		} `json:"plans"`
	}
	assert.NoError(t, json.Unmarshal(body, &out))
	assert.Len(t, out.Plans, 3, "free tier is not part of the purchasable catalog")

	// Provider price references must never leak to clients.
	assert.NotContains(t, string(body), "stripe")
	assert.NotContains(t, string(body), "paypal")
}
