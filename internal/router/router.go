package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-essay-api/internal/config"
	"github.com/noah-isme/gema-essay-api/internal/handler"
	"github.com/noah-isme/gema-essay-api/internal/middleware"
	"github.com/noah-isme/gema-essay-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	RevisionHandler   *handler.RevisionHandler
	AdminRetryHandler *handler.AdminRetryHandler
	HealthProbes      map[string]handler.HealthProbe
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions"))
	}

	if deps.RevisionHandler != nil {
		deps.RevisionHandler.Register(api.Group("/revision"))
	}

	// Operator endpoints are never exposed without a token check.
	if deps.AdminRetryHandler != nil && deps.JWTMiddleware != nil {
		admin := api.Group("/admin", deps.JWTMiddleware, middleware.RequireRole(middleware.RoleAdmin, middleware.RoleOperator))
		deps.AdminRetryHandler.Register(admin)
	}
}
