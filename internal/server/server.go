package server

import (
	"context"
	"time"

	"github.com/pulseboard/pulseboard/internal/controllers"
	"github.com/pulseboard/pulseboard/internal/version"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type HTTPServerDependencies struct {
	DashboardController *controllers.DashboardController
}

func NewHTTPServer(ctx context.Context, deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName: "pulseboard",
	})

	router.Use(cors.New())
	router.Use(logger.New())

	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "pulseboard",
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")

	integrations := api.Group("/integrations")
	integrations.Get("/", deps.DashboardController.ListIntegrations)
	integrations.Get("/:type/metrics", deps.DashboardController.ListMetrics)
	integrations.Get("/:type/capabilities", deps.DashboardController.ListCapabilities)

	instances := api.Group("/instances/:id")
	instances.Post("/test", deps.DashboardController.TestInstance)
	instances.Get("/metrics/:metric", deps.DashboardController.GetMetric)
	instances.Post("/actions/:action", deps.DashboardController.PerformAction)
	instances.Post("/capabilities/:capabilityId", deps.DashboardController.InvokeCapability)

	return router
}
