package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/crennie/image-web-convert/cmd/convertd/container"
	"github.com/crennie/image-web-convert/cmd/convertd/routes"
	"github.com/crennie/image-web-convert/common/bootstrap"
	"github.com/crennie/image-web-convert/common/config"
	commonmw "github.com/crennie/image-web-convert/common/middleware"
	"github.com/crennie/image-web-convert/common/ratelimit"
	"github.com/crennie/image-web-convert/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (config, logger, storage dirs, redis, telemetry)
	components, err := bootstrap.Setup(ctx, "convertd")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap convertd: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Initialize Echo server
	e := setupEcho()

	// Setup middleware
	setupMiddleware(e, components.Config)

	// Setup health check
	setupHealthCheck(e, components)

	// Service-wide backpressure; the per-IP session limit is attached to its route
	if serviceContainer.RateLimiter != nil {
		e.Use(commonmw.GlobalRateLimitMiddleware(serviceContainer.RateLimiter, ratelimit.DefaultGlobalConfig.Limit))
	}

	// Register all routes
	registerRoutes(e, serviceContainer)

	// Start server with graceful shutdown
	srv := server.New("convertd", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, cfg *config.Config) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	// Caps the whole multipart body; per-file limits are enforced downstream
	e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.Session.MaxTotalBytes, 10)))
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{
				"status":  "degraded",
				"service": "convertd",
				"error":   err.Error(),
			})
		}
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "convertd",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterSessionRoutes(e, serviceContainer)
	routes.RegisterUploadRoutes(e, serviceContainer)
	routes.RegisterFilesRoutes(e, serviceContainer)
}
