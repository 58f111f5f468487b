package container

import (
	"github.com/crennie/image-web-convert/cmd/convertd/repository"
	"github.com/crennie/image-web-convert/cmd/convertd/service"
	"github.com/crennie/image-web-convert/common/bootstrap"
	"github.com/crennie/image-web-convert/common/ratelimit"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	SessionRepo *repository.SessionRepository
	MetaRepo    *repository.UploadMetaRepository

	// Services
	AuthService    *service.AuthService
	SessionService *service.SessionService
	ImageService   *service.ImageService
	UploadService  *service.UploadService
	FilesService   *service.FilesService

	// RateLimiter guards session creation; nil when rate limiting is disabled
	RateLimiter *ratelimit.Limiter
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	// Initialize repositories
	sessionRepo := repository.NewSessionRepository(cfg.Storage.UploadDir)
	metaRepo := repository.NewUploadMetaRepository(cfg.Storage.UploadDir)

	// Initialize services (bottom-up: dependencies first)
	authService := service.NewAuthService(sessionRepo, components.Logger)
	sessionService := service.NewSessionService(sessionRepo, cfg.Session, components.Logger)
	imageService := service.NewImageService(cfg.Image, components.Logger)
	uploadService := service.NewUploadService(imageService, metaRepo, cfg.Storage.TmpDir, components.Logger)
	filesService := service.NewFilesService(metaRepo, components.Logger)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled && components.Redis != nil {
		limiter = ratelimit.NewLimiter(components.Redis.GetUnderlying(), components.Logger)
	}

	return &Container{
		Components:     components,
		SessionRepo:    sessionRepo,
		MetaRepo:       metaRepo,
		AuthService:    authService,
		SessionService: sessionService,
		ImageService:   imageService,
		UploadService:  uploadService,
		FilesService:   filesService,
		RateLimiter:    limiter,
	}, nil
}
