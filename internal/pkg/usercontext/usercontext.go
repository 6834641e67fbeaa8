package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext carries the resolved viewer identity for one request. The
// middleware stores it in Locals under KeyUserContext; handlers read it
// through GetUserContext instead of poking session keys themselves.
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	Plan       string `json:"plan"`
}

// Anonymous is the context used when no session is present or readable.
func Anonymous() UserContext {
	return UserContext{}
}

// GetUserContext returns the viewer identity for the request, falling back
// to the anonymous context when the middleware did not run or stored an
// unexpected value.
func GetUserContext(c *fiber.Ctx) UserContext {
	if uc, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return uc
	}
	return Anonymous()
}
