package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pixmart/pixmart/app/controllers"
	"github.com/pixmart/pixmart/internal/pkg/middleware"
)

// ServerInterface is the v1 API surface. Keeping it as an interface lets
// tests swap in stub servers without touching the route table.
type ServerInterface interface {
	GetPing(c *fiber.Ctx) error

	PostAuthRegister(c *fiber.Ctx) error
	PostAuthLogin(c *fiber.Ctx) error
	PostAuthLogout(c *fiber.Ctx) error
	GetMe(c *fiber.Ctx) error
	GetMyUsage(c *fiber.Ctx) error
	GetMyImages(c *fiber.Ctx) error

	GetGallery(c *fiber.Ctx) error
	GetGalleryStats(c *fiber.Ctx) error
	PostImage(c *fiber.Ctx) error
	GetImage(c *fiber.Ctx) error
	DeleteImage(c *fiber.Ctx) error
	GetImageAccess(c *fiber.Ctx) error
	GetImageDownload(c *fiber.Ctx) error

	GetPlans(c *fiber.Ctx) error
	PostCheckoutSubscription(c *fiber.Ctx) error
	PostCheckoutPurchase(c *fiber.Ctx) error

	GetAdminWebhookEvents(c *fiber.Ctx) error
}

// APIServer implements ServerInterface by delegating to the controllers.
type APIServer struct{}

func NewAPIServer() *APIServer {
	return &APIServer{}
}

func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ping": "pong"})
}

func (s *APIServer) PostAuthRegister(c *fiber.Ctx) error { return controllers.HandleAuthRegister(c) }
func (s *APIServer) PostAuthLogin(c *fiber.Ctx) error    { return controllers.HandleAuthLogin(c) }
func (s *APIServer) PostAuthLogout(c *fiber.Ctx) error   { return controllers.HandleAuthLogout(c) }
func (s *APIServer) GetMe(c *fiber.Ctx) error            { return controllers.HandleMe(c) }
func (s *APIServer) GetMyUsage(c *fiber.Ctx) error       { return controllers.HandleMyUsage(c) }
func (s *APIServer) GetMyImages(c *fiber.Ctx) error      { return controllers.HandleMyImages(c) }

func (s *APIServer) GetGallery(c *fiber.Ctx) error      { return controllers.HandleGalleryList(c) }
func (s *APIServer) GetGalleryStats(c *fiber.Ctx) error { return controllers.HandleGalleryStats(c) }
func (s *APIServer) PostImage(c *fiber.Ctx) error       { return controllers.HandleImageUpload(c) }
func (s *APIServer) GetImage(c *fiber.Ctx) error        { return controllers.HandleImageGet(c) }
func (s *APIServer) DeleteImage(c *fiber.Ctx) error     { return controllers.HandleImageDelete(c) }
func (s *APIServer) GetImageAccess(c *fiber.Ctx) error  { return controllers.HandleImageAccess(c) }
func (s *APIServer) GetImageDownload(c *fiber.Ctx) error {
	return controllers.HandleImageDownload(c)
}

func (s *APIServer) GetPlans(c *fiber.Ctx) error { return controllers.HandlePlansList(c) }
func (s *APIServer) PostCheckoutSubscription(c *fiber.Ctx) error {
	return controllers.HandleCheckoutSubscription(c)
}
func (s *APIServer) PostCheckoutPurchase(c *fiber.Ctx) error {
	return controllers.HandleCheckoutPurchase(c)
}

func (s *APIServer) GetAdminWebhookEvents(c *fiber.Ctx) error {
	return controllers.HandleAdminWebhookEvents(c)
}

// RegisterHandlers attaches the v1 routes to the given router group. Routes
// that need a session carry RequireAPISessionAuth; image access and download
// stay public because the access decision itself handles anonymous visitors.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	router.Get("/ping", si.GetPing)

	router.Post("/auth/register", si.PostAuthRegister)
	router.Post("/auth/login", si.PostAuthLogin)
	router.Post("/auth/logout", middleware.RequireAPISessionAuth, si.PostAuthLogout)

	router.Get("/me", middleware.RequireAPISessionAuth, si.GetMe)
	router.Get("/me/usage", middleware.RequireAPISessionAuth, si.GetMyUsage)
	router.Get("/me/images", middleware.RequireAPISessionAuth, si.GetMyImages)

	router.Get("/gallery", si.GetGallery)
	router.Get("/gallery/stats", si.GetGalleryStats)
	router.Post("/images", middleware.RequireAPISessionAuth, si.PostImage)
	router.Get("/images/:uuid", si.GetImage)
	router.Delete("/images/:uuid", middleware.RequireAPISessionAuth, si.DeleteImage)
	router.Get("/images/:uuid/access", si.GetImageAccess)
	router.Get("/images/:uuid/download", si.GetImageDownload)

	router.Get("/plans", si.GetPlans)
	router.Post("/checkout/subscription", middleware.RequireAPISessionAuth, si.PostCheckoutSubscription)
	router.Post("/checkout/purchase", si.PostCheckoutPurchase)

	router.Get("/admin/webhook-events", middleware.RequireAPISessionAuth, middleware.RequireAPIAdmin, si.GetAdminWebhookEvents)
}
