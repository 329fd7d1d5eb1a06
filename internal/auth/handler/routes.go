package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteOptions carries the optional pieces mounted next to the auth routes.
type RouteOptions struct {
	// Throttle runs in front of the /api/auth group when set.
	Throttle fiber.Handler
	Health   *HealthHandler
	Gatherer prometheus.Gatherer
}

func RegisterRoutes(app *fiber.App, h *AuthHandler, opts RouteOptions) {
	auth := app.Group("/api/auth", func(c *fiber.Ctx) error {
		noStore(c)
		return c.Next()
	})
	if opts.Throttle != nil {
		auth.Use(opts.Throttle)
	}
	auth.Post("/signup", h.Signup)
	auth.Post("/login", h.Login)

	health := opts.Health
	if health == nil {
		health = NewHealthHandler(nil, nil)
	}
	app.Get("/health", health.Live)
	app.Get("/ready", health.Ready)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
