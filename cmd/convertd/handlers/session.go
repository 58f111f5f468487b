package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crennie/image-web-convert/cmd/convertd/models"
	"github.com/crennie/image-web-convert/cmd/convertd/service"
	"github.com/crennie/image-web-convert/common/logger"
)

// SessionHandler handles session lifecycle requests
type SessionHandler struct {
	sessions *service.SessionService
	log      *logger.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *service.SessionService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		log:      log,
	}
}

// CreateSession creates an anonymous upload session
// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c echo.Context) error {
	resp, err := h.sessions.Create()
	if err != nil {
		h.log.Error("session creation failed", "error", err)
		return c.JSON(http.StatusInternalServerError,
			models.NewAPIError(models.ErrTypeUploadError, "failed to create session"))
	}

	return c.JSON(http.StatusCreated, resp)
}
