package controllers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantOffset int
		wantLimit  int
	}{
		{"defaults", "", 0, 24},
		{"explicit page", "?page=3&page_size=10", 20, 10},
		{"size capped", "?page=1&page_size=500", 0, 100},
		{"garbage falls back", "?page=abc&page_size=-2", 0, 24},
		{"page zero is page one", "?page=0", 0, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			var offset, limit int
			app.Get("/", func(c *fiber.Ctx) error {
				offset, limit = parsePagination(c)
				return c.SendString("ok")
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
			assert.NoError(t, err)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Equal(t, "2026-03-14T09:26:53Z", formatTimePtr(&ts))

	berlin := time.FixedZone("CET", 3600)
	local := time.Date(2026, 3, 14, 10, 26, 53, 0, berlin)
	assert.Equal(t, "2026-03-14T09:26:53Z", formatTimePtr(&local))
}
