package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config customises the middleware registration pipeline.
type Config struct {
	TraceLogging TraceLoggingConfig
}

// Register attaches the common middlewares used across the API.
func Register(app *fiber.App, cfg Config) {
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		ExposeHeaders: TraceIDHeader,
	}))
	app.Use(TraceLogging(cfg.TraceLogging))
	// Recover sits inside the interceptor so a panic reaches it as a returned error.
	app.Use(recover.New())
}
