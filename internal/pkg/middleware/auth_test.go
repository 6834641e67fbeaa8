package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	icuser "github.com/pixmart/pixmart/internal/pkg/usercontext"
)

func newGuardedApp(loggedIn, isAdmin bool, guards ...fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(icuser.KeyFromProtected, loggedIn)
		c.Locals(icuser.KeyIsAdmin, isAdmin)
		return c.Next()
	})
	handlers := append(guards, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/guarded", handlers...)
	return app
}

func TestRequireAPISessionAuth(t *testing.T) {
	app := newGuardedApp(false, false, RequireAPISessionAuth)
	resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	app = newGuardedApp(true, false, RequireAPISessionAuth)
	resp, err = app.Test(httptest.NewRequest("GET", "/guarded", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAPIAdmin(t *testing.T) {
	app := newGuardedApp(false, false, RequireAPIAdmin)
	resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	app = newGuardedApp(true, false, RequireAPIAdmin)
	resp, err = app.Test(httptest.NewRequest("GET", "/guarded", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	app = newGuardedApp(true, true, RequireAPIAdmin)
	resp, err = app.Test(httptest.NewRequest("GET", "/guarded", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
