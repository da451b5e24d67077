package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gateway/internal/api/http/handlers"
	"github.com/spec-kit/auth-gateway/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Proxy   *handlers.ProxyHandler
	Session *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	// Session resolution everywhere below; it never rejects on its own.
	app.Use(cfg.Session.Handle)

	authGroup := app.Group("/auth")
	authGroup.Get("/login", cfg.Auth.Login)
	authGroup.Get("/callback", cfg.Auth.Callback)
	authGroup.Get("/logout", cfg.Auth.Logout)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/session", cfg.Auth.Session)
	authGroup.Get("/debug/session", cfg.Auth.DebugSession)

	app.All("/api/proxy/*", cfg.Proxy.Forward)
}
