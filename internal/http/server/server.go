// Package server assembles the Fiber application: error handling, middleware,
// routes.
package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/redis/go-redis/v9"

	"mapposter/internal/config"
	"mapposter/internal/http/handlers"
	"mapposter/internal/http/middleware"
	"mapposter/internal/infra/logging"
)

// Deps carries everything the HTTP layer needs. Collaborators are built once
// at startup and shared across requests.
type Deps struct {
	Config   config.Config
	Themes   handlers.ThemeStore
	Geocoder handlers.Geocoder
	Renderer handlers.Renderer
	Redis    *redis.Client
}

// New creates and configures a new Fiber app instance.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               d.Config.Server.Prefork,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	middleware.Register(app, d.Config)
	registerRoutes(app, d)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// registerRoutes mounts all route handlers to the app.
func registerRoutes(app *fiber.App, d Deps) {
	svc := handlers.NewPosterService(d.Config, d.Themes, d.Geocoder, d.Renderer, d.Redis)

	app.Get("/", svc.HandleRoot)
	app.Get("/themes", svc.HandleThemes)
	app.Get("/generate", svc.HandleGenerate)
	app.Get("/preview", svc.HandlePreview)
	app.Get("/render/stats", svc.HandleRenderStats)

	app.Get("/monitor", monitor.New())
}
