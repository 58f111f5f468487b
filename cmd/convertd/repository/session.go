package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crennie/image-web-convert/cmd/convertd/models"
)

// ErrSessionNotFound is returned when a session record is absent or unreadable
var ErrSessionNotFound = errors.New("session not found")

const sessionInfoFile = "session.info.json"

// SessionRepository persists one record per session as JSON on disk.
// Layout: <baseDir>/<sid>/session.info.json plus, per accepted upload,
// one encoded asset and one sidecar metadata file keyed by the upload id.
type SessionRepository struct {
	baseDir string
}

// NewSessionRepository creates a new session repository rooted at baseDir
func NewSessionRepository(baseDir string) *SessionRepository {
	return &SessionRepository{baseDir: baseDir}
}

// Dir returns the storage directory for a session
func (r *SessionRepository) Dir(sid string) string {
	return filepath.Join(r.baseDir, sid)
}

// InfoPath returns the path of a session's record file
func (r *SessionRepository) InfoPath(sid string) string {
	return filepath.Join(r.Dir(sid), sessionInfoFile)
}

// Create allocates the session's storage area and persists its record
func (r *SessionRepository) Create(record *models.SessionRecord) error {
	if err := os.MkdirAll(r.Dir(record.ID), 0o755); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	return r.Write(record.ID, record)
}

// Read loads a session record. Absent, unreadable, or corrupt records all
// resolve to ErrSessionNotFound so the guard can treat them uniformly.
func (r *SessionRepository) Read(sid string) (*models.SessionRecord, error) {
	raw, err := os.ReadFile(r.InfoPath(sid))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}

	var record models.SessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}

	return &record, nil
}

// Write overwrites the persisted record (last-writer-wins, no optimistic
// concurrency)
func (r *SessionRepository) Write(sid string, record *models.SessionRecord) error {
	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	if err := os.WriteFile(r.InfoPath(sid), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write session record: %w", err)
	}

	return nil
}
