package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crennie/image-web-convert/cmd/convertd/models"
)

// ErrMetaNotFound is returned when a sidecar metadata record does not exist
var ErrMetaNotFound = errors.New("upload metadata not found")

// UploadMetaRepository persists converted assets and their sidecar metadata
// inside a session's storage area
type UploadMetaRepository struct {
	baseDir string
}

// NewUploadMetaRepository creates a new upload metadata repository
func NewUploadMetaRepository(baseDir string) *UploadMetaRepository {
	return &UploadMetaRepository{baseDir: baseDir}
}

// AssetPath returns the absolute path of a stored asset within a session
func (r *UploadMetaRepository) AssetPath(sid, storedName string) string {
	return filepath.Join(r.baseDir, sid, storedName)
}

// metaPath returns the sidecar path for an upload id
func (r *UploadMetaRepository) metaPath(sid, id string) string {
	return filepath.Join(r.baseDir, sid, id+".json")
}

// WriteAsset persists the encoded bytes of a converted upload
func (r *UploadMetaRepository) WriteAsset(sid, storedName string, data []byte) error {
	if err := os.WriteFile(r.AssetPath(sid, storedName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write asset %s: %w", storedName, err)
	}
	return nil
}

// AssetExists reports whether a stored asset is present on disk
func (r *UploadMetaRepository) AssetExists(sid, storedName string) bool {
	_, err := os.Stat(r.AssetPath(sid, storedName))
	return err == nil
}

// WriteMeta persists the sidecar metadata record next to its asset
func (r *UploadMetaRepository) WriteMeta(sid string, meta *models.UploadMeta) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal upload metadata: %w", err)
	}

	if err := os.WriteFile(r.metaPath(sid, meta.ID), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write upload metadata: %w", err)
	}

	return nil
}

// ReadMeta loads the sidecar metadata for an upload id
func (r *UploadMetaRepository) ReadMeta(sid, id string) (*models.UploadMeta, error) {
	raw, err := os.ReadFile(r.metaPath(sid, id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMetaNotFound, id)
	}

	var meta models.UploadMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMetaNotFound, id)
	}

	return &meta, nil
}
