package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/crennie/image-web-convert/cmd/convertd/models"
	"github.com/crennie/image-web-convert/cmd/convertd/repository"
	"github.com/crennie/image-web-convert/common/logger"
)

// DefaultArchiveName is used when the client supplies no usable zip name
const DefaultArchiveName = "images.zip"

// ResolvedDownload is a transient, per-request view of one stored asset
type ResolvedDownload struct {
	ID                 string
	AbsPath            string // absolute FS path to the processed asset
	DownloadName       string // suggested filename for single downloads
	ArchiveName        string // filename inside a zip (unique, order-preserving)
	ContentType        string
	ContentDisposition string // precomputed header for single downloads
	Meta               *models.UploadMeta
}

// FilesService resolves stored uploads and streams them back, singly or as
// a zip bundle
type FilesService struct {
	meta *repository.UploadMetaRepository
	log  *logger.Logger
}

// NewFilesService creates a new files service
func NewFilesService(meta *repository.UploadMetaRepository, log *logger.Logger) *FilesService {
	return &FilesService{
		meta: meta,
		log:  log,
	}
}

// ReadMeta loads the sidecar metadata for one upload
func (s *FilesService) ReadMeta(sid, id string) (*models.UploadMeta, error) {
	return s.meta.ReadMeta(sid, id)
}

// Resolve maps ids to on-disk assets with collision-free download names.
// Found entries preserve the order of ids; an id with a missing sidecar or
// missing asset lands in missing instead.
func (s *FilesService) Resolve(sid string, ids []string) (found []ResolvedDownload, missing []string) {
	for _, id := range ids {
		meta, err := s.meta.ReadMeta(sid, id)
		if err != nil {
			missing = append(missing, id)
			continue
		}

		if !s.meta.AssetExists(sid, meta.Output.StoredName) {
			missing = append(missing, id)
			continue
		}

		downloadName := buildDownloadName(meta)
		found = append(found, ResolvedDownload{
			ID:                 id,
			AbsPath:            s.meta.AssetPath(sid, meta.Output.StoredName),
			DownloadName:       downloadName,
			ArchiveName:        downloadName, // uniquified below
			ContentType:        meta.Output.Mime,
			ContentDisposition: BuildContentDisposition(downloadName),
			Meta:               meta,
		})
	}

	uniquifyArchiveNames(found)
	return found, missing
}

// StreamZip writes a compressed archive of the resolved entries to the
// response, in input order, with no manifest or per-file metadata. A client
// disconnect aborts construction silently; any other failure propagates
// after bytes may already have been sent.
func (s *FilesService) StreamZip(ctx context.Context, w http.ResponseWriter, entries []ResolvedDownload, archiveName string) error {
	name := SanitizeArchiveName(archiveName)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", BuildContentDisposition(name))

	zw := zip.NewWriter(w)

	for _, entry := range entries {
		if ctx.Err() != nil {
			s.log.Debug("client disconnected during archive stream", "entry", entry.ArchiveName)
			zw.Close()
			return nil
		}

		header := &zip.FileHeader{
			Name:   entry.ArchiveName,
			Method: zip.Deflate,
		}
		header.Modified = entry.Meta.UploadedAt

		dst, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to add archive entry %s: %w", entry.ArchiveName, err)
		}

		if err := copyFile(dst, entry.AbsPath); err != nil {
			if ctx.Err() != nil {
				s.log.Debug("client disconnected during archive stream", "entry", entry.ArchiveName)
				zw.Close()
				return nil
			}
			return fmt.Errorf("failed to stream archive entry %s: %w", entry.ArchiveName, err)
		}
	}

	if err := zw.Close(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	return nil
}

func copyFile(dst io.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(dst, src)
	return err
}

// buildDownloadName derives the client-facing filename from the sanitized
// original base name plus the output extension
func buildDownloadName(meta *models.UploadMeta) string {
	base := strings.TrimSuffix(meta.Original.Name, filepath.Ext(meta.Original.Name))
	if base == "" {
		base = meta.ID
	}
	return SanitizeFileName(base) + OutputExt(meta.Output.Mime)
}

// BuildContentDisposition builds an attachment header with an ASCII-safe
// fallback filename and a percent-encoded UTF-8 filename (RFC 5987)
func BuildContentDisposition(filename string) string {
	name := SanitizeFileName(filename)

	var fallback strings.Builder
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' {
			fallback.WriteRune('_')
			continue
		}
		fallback.WriteRune(r)
	}

	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback.String(), url.PathEscape(name))
}

// SanitizeArchiveName makes a client-supplied zip name safe: unsafe
// characters replaced, empty input defaulted, ".zip" ensured
func SanitizeArchiveName(input string) string {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return DefaultArchiveName
	}
	safe := SanitizeFileName(raw)
	if !strings.HasSuffix(strings.ToLower(safe), ".zip") {
		safe += ".zip"
	}
	return safe
}

// uniquifyArchiveNames rewrites colliding archive names in place while
// preserving input order: the first occurrence keeps the name, later ones
// become "name (2).ext", "name (3).ext", ...
func uniquifyArchiveNames(entries []ResolvedDownload) {
	seen := make(map[string]int)
	for i := range entries {
		name := entries[i].ArchiveName
		n := seen[name] + 1
		seen[name] = n
		if n > 1 {
			ext := filepath.Ext(name)
			base := strings.TrimSuffix(name, ext)
			entries[i].ArchiveName = fmt.Sprintf("%s (%d)%s", base, n, ext)
		}
	}
}
