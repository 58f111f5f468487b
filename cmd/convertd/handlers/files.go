package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/crennie/image-web-convert/cmd/convertd/models"
	"github.com/crennie/image-web-convert/cmd/convertd/service"
	"github.com/crennie/image-web-convert/common/logger"
)

// DownloadRequest selects which processed files to bundle
type DownloadRequest struct {
	IDs         []string `json:"ids"`
	ArchiveName string   `json:"archiveName"`
}

// FilesHandler serves processed assets back to the session owner
type FilesHandler struct {
	auth  *service.AuthService
	files *service.FilesService
	log   *logger.Logger
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(auth *service.AuthService, files *service.FilesService, log *logger.Logger) *FilesHandler {
	return &FilesHandler{
		auth:  auth,
		files: files,
		log:   log,
	}
}

// guard validates the bearer token and requires a sealed session; downloads
// only exist after the one-shot upload completed
func (h *FilesHandler) guard(c echo.Context) (string, error, bool) {
	sid := c.Param("sid")

	record, guard := h.auth.Validate(sid, c.Request().Header.Get("Authorization"), time.Now().UTC())
	if guard != nil {
		return "", writeGuard(c, guard), false
	}

	if !record.Sealed() {
		return "", c.JSON(http.StatusConflict,
			models.NewAPIError(models.ErrTypeSessionUsed, "session has no completed upload yet")), false
	}

	return sid, nil, true
}

// Download streams one processed file
// GET /api/v1/sessions/:sid/files/:fileId
func (h *FilesHandler) Download(c echo.Context) error {
	sid, resp, ok := h.guard(c)
	if !ok {
		return resp
	}

	fileID := c.Param("fileId")
	found, _ := h.files.Resolve(sid, []string{fileID})
	if len(found) == 0 {
		return c.JSON(http.StatusNotFound,
			models.NewAPIError(models.ErrTypeNotFound, "file not found"))
	}

	entry := found[0]
	c.Response().Header().Set("Content-Type", entry.ContentType)
	c.Response().Header().Set("Content-Disposition", entry.ContentDisposition)
	return c.File(entry.AbsPath)
}

// Meta returns the sidecar metadata for one processed file
// GET /api/v1/sessions/:sid/files/:fileId/meta
func (h *FilesHandler) Meta(c echo.Context) error {
	sid, resp, ok := h.guard(c)
	if !ok {
		return resp
	}

	fileID := c.Param("fileId")
	meta, err := h.files.ReadMeta(sid, fileID)
	if err != nil {
		return c.JSON(http.StatusNotFound,
			models.NewAPIError(models.ErrTypeNotFound, "file not found"))
	}

	return c.JSON(http.StatusOK, meta)
}

// DownloadMany streams the selected files as one zip archive. Missing ids
// are reported in the X-Missing-Ids header; the archive carries the rest.
// POST /api/v1/sessions/:sid/files/download
func (h *FilesHandler) DownloadMany(c echo.Context) error {
	sid, resp, ok := h.guard(c)
	if !ok {
		return resp
	}

	var req DownloadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			models.NewAPIError(models.ErrTypeBadRequest, "malformed download request"))
	}
	if len(req.IDs) == 0 {
		return c.JSON(http.StatusBadRequest,
			models.NewAPIError(models.ErrTypeBadRequest, "ids must be a non-empty array"))
	}

	found, missing := h.files.Resolve(sid, req.IDs)
	if len(found) == 0 {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"status":  "error",
			"message": "none of the requested files were found",
			"missing": missing,
		})
	}

	if len(missing) > 0 {
		c.Response().Header().Set("X-Missing-Ids", strings.Join(missing, ","))
	}

	if err := h.files.StreamZip(c.Request().Context(), c.Response(), found, req.ArchiveName); err != nil {
		// Headers are gone by now; all we can do is log and drop the conn
		h.log.Error("archive stream failed", "sid", sid, "error", err)
		return err
	}

	return nil
}
