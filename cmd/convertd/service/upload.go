package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/crennie/image-web-convert/cmd/convertd/models"
	"github.com/crennie/image-web-convert/cmd/convertd/repository"
	"github.com/crennie/image-web-convert/common/ident"
	"github.com/crennie/image-web-convert/common/logger"
)

// RawUpload is one staged multipart file awaiting conversion
type RawUpload struct {
	FileName      string
	TempPath      string
	SizeBytes     int64
	CorrelationID string
}

// UploadService converts a batch of staged files and persists the results
// into the session's storage area
type UploadService struct {
	images *ImageService
	meta   *repository.UploadMetaRepository
	tmpDir string
	log    *logger.Logger
}

// NewUploadService creates a new upload service
func NewUploadService(images *ImageService, meta *repository.UploadMetaRepository, tmpDir string, log *logger.Logger) *UploadService {
	return &UploadService{
		images: images,
		meta:   meta,
		tmpDir: tmpDir,
		log:    log,
	}
}

// Stage copies one multipart part into the temp dir so conversion can work
// from a file path
func (s *UploadService) Stage(fh *multipart.FileHeader) (RawUpload, error) {
	src, err := fh.Open()
	if err != nil {
		return RawUpload{}, fmt.Errorf("failed to open multipart file: %w", err)
	}
	defer src.Close()

	scratch := filepath.Join(s.tmpDir, ".scratch-"+uuid.NewString())
	dst, err := os.Create(scratch)
	if err != nil {
		return RawUpload{}, fmt.Errorf("failed to create scratch file: %w", err)
	}

	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(scratch)
		return RawUpload{}, fmt.Errorf("failed to stage upload: %w", err)
	}

	return RawUpload{
		FileName:  fh.Filename,
		TempPath:  scratch,
		SizeBytes: written,
	}, nil
}

// SaveBatch converts every staged file independently and concurrently.
// One file's failure becomes one rejected entry and never affects its
// siblings; a canceled request does not cancel files already in flight.
// Accepted entries preserve the input order of their files.
func (s *UploadService) SaveBatch(ctx context.Context, sid, targetMime string, files []RawUpload) ([]models.UploadAccepted, []models.UploadRejected) {
	type outcome struct {
		accepted *models.UploadAccepted
		rejected *models.UploadRejected
	}

	outcomes := make([]outcome, len(files))
	log := s.log.WithSessionID(sid)

	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file RawUpload) {
			defer wg.Done()

			accepted, err := s.saveOne(sid, targetMime, file)
			if err != nil {
				log.Warn("upload rejected", "file", file.FileName, "error", err)
				outcomes[i] = outcome{rejected: &models.UploadRejected{
					FileName:      file.FileName,
					Error:         err.Error(),
					CorrelationID: file.CorrelationID,
				}}
				return
			}
			outcomes[i] = outcome{accepted: accepted}
		}(i, file)
	}
	wg.Wait()

	accepted := make([]models.UploadAccepted, 0, len(files))
	rejected := make([]models.UploadRejected, 0)
	for _, o := range outcomes {
		switch {
		case o.accepted != nil:
			accepted = append(accepted, *o.accepted)
		case o.rejected != nil:
			rejected = append(rejected, *o.rejected)
		}
	}

	return accepted, rejected
}

// saveOne converts a single staged file, persists the asset and its sidecar
// metadata, and removes the temp input on success
func (s *UploadService) saveOne(sid, targetMime string, file RawUpload) (*models.UploadAccepted, error) {
	originalName := SanitizeFileName(file.FileName)

	result, err := s.images.Convert(file.TempPath, targetMime)
	if err != nil {
		return nil, err
	}

	id, err := ident.New(ident.DefaultBytes, ident.Hex)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate file id: %w", err)
	}
	storedName := id + OutputExt(targetMime)

	if err := s.meta.WriteAsset(sid, storedName, result.Data); err != nil {
		return nil, err
	}

	meta := &models.UploadMeta{
		ID: id,
		Original: models.OriginalInfo{
			Name:      originalName,
			Mime:      result.Input.Mime,
			SizeBytes: file.SizeBytes,
			Width:     result.Input.Width,
			Height:    result.Input.Height,
			Pages:     result.Input.Pages,
		},
		Output: models.OutputInfo{
			StoredName: storedName,
			Mime:       result.Output.Mime,
			SizeBytes:  result.Output.SizeBytes,
			Width:      result.Output.Width,
			Height:     result.Output.Height,
			HasAlpha:   result.Input.HasAlpha,
			ColorSpace: result.Output.ColorSpace,
		},
		ExifStripped: result.Output.ExifStripped,
		Animated:     result.Output.Animated,
		UploadedAt:   time.Now().UTC(),
	}

	if err := s.meta.WriteMeta(sid, meta); err != nil {
		return nil, err
	}

	s.log.WithSessionID(sid).WithFileID(id).Debug("upload stored",
		"stored_name", storedName,
		"output_bytes", result.Output.SizeBytes,
	)

	// Remove the staged input only on success; failed conversions keep
	// their temp file for the dispatcher's cleanup
	if err := os.Remove(file.TempPath); err != nil {
		s.log.Debug("failed to remove temp file", "path", file.TempPath, "error", err)
	}

	return &models.UploadAccepted{
		ID:      id,
		URL:     fmt.Sprintf("/api/v1/sessions/%s/files/%s", sid, id),
		MetaURL: fmt.Sprintf("/api/v1/sessions/%s/files/%s/meta", sid, id),
		Meta:    meta,
	}, nil
}

// SanitizeFileName normalizes a client-supplied filename: path components
// and control characters are stripped, filesystem-unsafe characters are
// replaced, and whitespace runs collapse to single spaces.
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range base {
		switch {
		case unicode.IsControl(r):
			// drop
		case strings.ContainsRune(`/\?%*:|"<>`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "upload"
	}
	return cleaned
}
