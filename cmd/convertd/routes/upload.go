package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/crennie/image-web-convert/cmd/convertd/container"
	"github.com/crennie/image-web-convert/cmd/convertd/handlers"
)

// RegisterUploadRoutes registers the one-shot upload route
func RegisterUploadRoutes(e *echo.Echo, c *container.Container) {
	// Create handler with dependencies
	h := handlers.NewUploadHandler(
		c.AuthService,
		c.SessionService,
		c.UploadService,
		c.Components.Config.Session,
		c.Components.Logger,
	)

	sessions := e.Group("/api/v1/sessions")
	{
		sessions.POST("/:sid/uploads", h.Upload) // POST /api/v1/sessions/:sid/uploads
	}
}
