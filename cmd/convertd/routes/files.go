package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/crennie/image-web-convert/cmd/convertd/container"
	"github.com/crennie/image-web-convert/cmd/convertd/handlers"
)

// RegisterFilesRoutes registers processed-file retrieval routes
func RegisterFilesRoutes(e *echo.Echo, c *container.Container) {
	// Create handler with dependencies
	h := handlers.NewFilesHandler(c.AuthService, c.FilesService, c.Components.Logger)

	files := e.Group("/api/v1/sessions/:sid/files")
	{
		files.GET("/:fileId", h.Download)       // GET /api/v1/sessions/:sid/files/:fileId
		files.GET("/:fileId/meta", h.Meta)      // GET /api/v1/sessions/:sid/files/:fileId/meta
		files.POST("/download", h.DownloadMany) // POST /api/v1/sessions/:sid/files/download
	}
}
