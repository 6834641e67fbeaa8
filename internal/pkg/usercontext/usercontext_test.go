package usercontext

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestGetUserContext(t *testing.T) {
	app := fiber.New()
	var got UserContext
	app.Get("/anon", func(c *fiber.Ctx) error {
		got = GetUserContext(c)
		return c.SendString("ok")
	})
	app.Get("/user", func(c *fiber.Ctx) error {
		c.Locals(KeyUserContext, UserContext{UserID: 7, Username: "ada", IsLoggedIn: true, Plan: "premium"})
		got = GetUserContext(c)
		return c.SendString("ok")
	})
	app.Get("/garbage", func(c *fiber.Ctx) error {
		c.Locals(KeyUserContext, "not a context")
		got = GetUserContext(c)
		return c.SendString("ok")
	})

	_, err := app.Test(httptest.NewRequest("GET", "/anon", nil))
	assert.NoError(t, err)
	assert.Equal(t, Anonymous(), got)

	_, err = app.Test(httptest.NewRequest("GET", "/user", nil))
	assert.NoError(t, err)
	assert.True(t, got.IsLoggedIn)
	assert.Equal(t, uint(7), got.UserID)
	assert.Equal(t, "premium", got.Plan)

	_, err = app.Test(httptest.NewRequest("GET", "/garbage", nil))
	assert.NoError(t, err)
	assert.Equal(t, Anonymous(), got)
}
