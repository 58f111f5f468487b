package service

import (
	"fmt"
	"time"

	"github.com/crennie/image-web-convert/cmd/convertd/models"
	"github.com/crennie/image-web-convert/cmd/convertd/repository"
	"github.com/crennie/image-web-convert/common/config"
	"github.com/crennie/image-web-convert/common/ident"
	"github.com/crennie/image-web-convert/common/logger"
)

// SessionService manages session lifecycle: creation, sealing, expiry
type SessionService struct {
	sessions *repository.SessionRepository
	cfg      config.SessionConfig
	log      *logger.Logger
}

// NewSessionService creates a new session service
func NewSessionService(sessions *repository.SessionRepository, cfg config.SessionConfig, log *logger.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		cfg:      cfg,
		log:      log,
	}
}

// Create allocates a session id, its bearer token, and its storage area.
// The returned token is shown to the client exactly once; the record keeps
// only the digest.
func (s *SessionService) Create() (*models.CreateSessionResponse, error) {
	sid, err := ident.New(ident.DefaultBytes, ident.Hex)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate session id: %w", err)
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	now := time.Now().UTC()
	record := &models.SessionRecord{
		ID:        sid,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
		SealedAt:  nil,
		Limits: models.SessionLimits{
			MaxFiles:      s.cfg.MaxFiles,
			MaxTotalBytes: s.cfg.MaxTotalBytes,
		},
		Counts:    models.SessionCounts{},
		TokenHash: token.Hash,
	}

	if err := s.sessions.Create(record); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	s.log.Info("session created", "sid", sid, "expires_at", record.ExpiresAt)

	return &models.CreateSessionResponse{
		SID:       sid,
		ExpiresAt: record.ExpiresAt,
		Token:     token.Token,
	}, nil
}

// Seal marks the one-shot upload phase complete and folds the accepted file
// count into the record. Sealing happens unconditionally after a batch, even
// when every file failed. Writes are last-writer-wins.
func (s *SessionService) Seal(record *models.SessionRecord, acceptedFiles int, acceptedBytes int64) error {
	now := time.Now().UTC()
	record.Counts.Files += acceptedFiles
	record.Counts.TotalBytes += acceptedBytes
	record.SealedAt = &now

	if err := s.sessions.Write(record.ID, record); err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}

	s.log.Info("session sealed",
		"sid", record.ID,
		"files", record.Counts.Files,
		"total_bytes", record.Counts.TotalBytes,
	)
	return nil
}
