package handlers

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/crennie/image-web-convert/cmd/convertd/models"
	"github.com/crennie/image-web-convert/cmd/convertd/service"
	"github.com/crennie/image-web-convert/common/config"
	"github.com/crennie/image-web-convert/common/logger"
)

// UploadHandler handles the one-shot upload batch for a session
type UploadHandler struct {
	auth     *service.AuthService
	sessions *service.SessionService
	uploads  *service.UploadService
	cfg      config.SessionConfig
	log      *logger.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(auth *service.AuthService, sessions *service.SessionService, uploads *service.UploadService, cfg config.SessionConfig, log *logger.Logger) *UploadHandler {
	return &UploadHandler{
		auth:     auth,
		sessions: sessions,
		uploads:  uploads,
		cfg:      cfg,
		log:      log,
	}
}

// Upload converts a multipart batch into stored assets and seals the session
// POST /api/v1/sessions/:sid/uploads
func (h *UploadHandler) Upload(c echo.Context) error {
	sid := c.Param("sid")

	record, guard := h.auth.Validate(sid, c.Request().Header.Get("Authorization"), time.Now().UTC())
	if guard != nil {
		return writeGuard(c, guard)
	}

	// One batch per session; a second attempt fails before any file is read
	if record.Sealed() {
		return c.JSON(http.StatusConflict,
			models.NewAPIError(models.ErrTypeSessionUsed, "session has already been used for an upload"))
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest,
			models.NewAPIError(models.ErrTypeBadRequest, "malformed multipart body"))
	}

	targetMime := c.FormValue("outputType")
	if targetMime == "" {
		targetMime = "image/webp"
	}
	if !service.AllowedOutputType(targetMime) {
		return c.JSON(http.StatusBadRequest,
			models.NewAPIError(models.ErrTypeBadRequest, fmt.Sprintf("unsupported output type: %s", targetMime)))
	}

	files := collectFiles(form)
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest,
			models.NewAPIError(models.ErrTypeMissingFiles, "no files were provided"))
	}
	if len(files) > h.cfg.MaxFiles {
		return c.JSON(http.StatusBadRequest,
			models.NewAPIError(models.ErrTypeBadRequest, fmt.Sprintf("too many files: %d exceeds limit of %d", len(files), h.cfg.MaxFiles)))
	}

	correlationIDs := parseCorrelationIDs(c.FormValue("correlationIds"), len(files))

	// Stage every part first; a part that cannot even be staged becomes a
	// rejection without failing its siblings
	staged := make([]service.RawUpload, 0, len(files))
	rejected := make([]models.UploadRejected, 0)
	for i, fh := range files {
		if h.cfg.MaxFileBytes > 0 && fh.Size > h.cfg.MaxFileBytes {
			rejected = append(rejected, models.UploadRejected{
				FileName:      fh.Filename,
				Error:         fmt.Sprintf("file exceeds per-file limit of %d bytes", h.cfg.MaxFileBytes),
				CorrelationID: correlationIDs[i],
			})
			continue
		}

		raw, err := h.uploads.Stage(fh)
		if err != nil {
			h.log.Warn("failed to stage upload", "sid", sid, "file", fh.Filename, "error", err)
			rejected = append(rejected, models.UploadRejected{
				FileName:      fh.Filename,
				Error:         "failed to read uploaded file",
				CorrelationID: correlationIDs[i],
			})
			continue
		}
		raw.CorrelationID = correlationIDs[i]
		staged = append(staged, raw)
	}

	accepted, batchRejected := h.uploads.SaveBatch(c.Request().Context(), sid, targetMime, staged)
	rejected = append(rejected, batchRejected...)

	var acceptedBytes int64
	for _, a := range accepted {
		acceptedBytes += a.Meta.Original.SizeBytes
	}

	// Sealing is unconditional, even when every file failed
	if err := h.sessions.Seal(record, len(accepted), acceptedBytes); err != nil {
		h.log.Error("failed to seal session", "sid", sid, "error", err)
		return c.JSON(http.StatusInternalServerError,
			models.NewAPIError(models.ErrTypeUploadError, "failed to finalize upload"))
	}

	resp := models.UploadsResponse{
		Status:   "ok",
		Accepted: accepted,
		Rejected: rejected,
	}
	status := http.StatusOK
	if len(rejected) > 0 {
		resp.Status = "partial"
		status = http.StatusMultiStatus
	}

	return c.JSON(status, resp)
}

// writeGuard converts a failed session validation into the HTTP response,
// attaching the challenge header on 401 outcomes
func writeGuard(c echo.Context, guard *service.GuardResult) error {
	if guard.Challenge != "" {
		c.Response().Header().Set("WWW-Authenticate", guard.Challenge)
	}
	return c.JSON(guard.Status, guard.APIError)
}

// collectFiles gathers the batch from the "files" field; parts sent under
// other field names are accepted too, in sorted field order so the batch
// order stays deterministic
func collectFiles(form *multipart.Form) []*multipart.FileHeader {
	files := append([]*multipart.FileHeader(nil), form.File["files"]...)

	extra := make([]string, 0, len(form.File))
	for field := range form.File {
		if field != "files" {
			extra = append(extra, field)
		}
	}
	sort.Strings(extra)
	for _, field := range extra {
		files = append(files, form.File[field]...)
	}
	return files
}

// parseCorrelationIDs decodes the optional client-supplied id array and pads
// or truncates it to the file count. Malformed input degrades to no ids.
func parseCorrelationIDs(raw string, n int) []string {
	ids := make([]string, n)
	if raw == "" {
		return ids
	}

	var parsed []string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return ids
	}
	for i := 0; i < n && i < len(parsed); i++ {
		ids[i] = parsed[i]
	}
	return ids
}
