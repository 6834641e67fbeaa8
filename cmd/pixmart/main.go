package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pixmart/pixmart/app/controllers"
	"github.com/pixmart/pixmart/app/repository"
	"github.com/pixmart/pixmart/internal/pkg/cache"
	"github.com/pixmart/pixmart/internal/pkg/database"
	"github.com/pixmart/pixmart/internal/pkg/env"
	"github.com/pixmart/pixmart/internal/pkg/metrics/counter"
	"github.com/pixmart/pixmart/internal/pkg/objectstore"
	"github.com/pixmart/pixmart/internal/pkg/plans"
	"github.com/pixmart/pixmart/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "8080")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	plans.Setup()
	repository.InitializeFactory(database.GetDB())

	if err := validatePaymentCredentials(); err != nil {
		log.Fatal(err)
	}

	storeCfg, err := objectstore.LoadConfig()
	if err != nil {
		log.Fatalf("object storage config: %v", err)
	}
	store, err := objectstore.NewClient(storeCfg)
	if err != nil {
		log.Fatalf("object storage: %v", err)
	}
	controllers.SetImageStore(store)

	// Drain view/download counters from Redis into the database.
	counter.StartFlusher(context.Background(), time.Minute)

	app := fiber.New(fiber.Config{
		AppName:   "PixMart",
		BodyLimit: 100 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app)

	return app
}

// validatePaymentCredentials fails startup when live payment providers are
// selected but not configured. PAYMENTS_SIMULATED=true skips the check for
// local development.
func validatePaymentCredentials() error {
	if env.PaymentsSimulated() {
		return nil
	}
	required := []string{
		"STRIPE_SECRET_KEY",
		"STRIPE_WEBHOOK_SECRET",
		"PAYPAL_CLIENT_ID",
		"PAYPAL_CLIENT_SECRET",
		"PAYPAL_WEBHOOK_ID",
		"CRYPTO_API_KEY",
		"CRYPTO_WEBHOOK_SECRET",
	}
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("payment providers are live but credentials are missing: %s (set PAYMENTS_SIMULATED=true to run without them)", strings.Join(missing, ", "))
	}
	return nil
}
