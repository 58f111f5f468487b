package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/crennie/image-web-convert/cmd/convertd/container"
	"github.com/crennie/image-web-convert/cmd/convertd/handlers"
	"github.com/crennie/image-web-convert/common/middleware"
	"github.com/crennie/image-web-convert/common/ratelimit"
)

// RegisterSessionRoutes registers session lifecycle routes
func RegisterSessionRoutes(e *echo.Echo, c *container.Container) {
	// Create handler with dependencies
	h := handlers.NewSessionHandler(c.SessionService, c.Components.Logger)

	limit := c.Components.Config.RateLimit.SessionsPerMin
	if limit <= 0 {
		limit = ratelimit.DefaultSessionCreateConfig.Limit
	}

	sessions := e.Group("/api/v1/sessions")
	{
		// Creation is unauthenticated, so it carries the per-IP rate limit
		sessions.POST("", h.CreateSession,
			middleware.SessionCreateRateLimitMiddleware(c.RateLimiter, limit))
	}
}
