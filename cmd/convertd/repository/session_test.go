package repository

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crennie/image-web-convert/cmd/convertd/models"
)

func newRecord(sid string, now time.Time) *models.SessionRecord {
	return &models.SessionRecord{
		ID:        sid,
		CreatedAt: now,
		ExpiresAt: now.Add(15 * time.Minute),
		Limits:    models.SessionLimits{MaxFiles: 20, MaxTotalBytes: 500_000_000},
		TokenHash: "aabbcc",
	}
}

func TestSessionCreateAndRead(t *testing.T) {
	repo := NewSessionRepository(t.TempDir())
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.Create(newRecord("s1", now)))

	got, err := repo.Read("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.True(t, got.CreatedAt.Equal(now))
	assert.Nil(t, got.SealedAt)
	assert.False(t, got.Sealed())

	// storage area exists alongside the record
	info, err := os.Stat(repo.Dir("s1"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSessionReadMissing(t *testing.T) {
	repo := NewSessionRepository(t.TempDir())

	_, err := repo.Read("absent")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionReadCorrupt(t *testing.T) {
	repo := NewSessionRepository(t.TempDir())
	require.NoError(t, os.MkdirAll(repo.Dir("s1"), 0o755))
	require.NoError(t, os.WriteFile(repo.InfoPath("s1"), []byte("{not json"), 0o644))

	_, err := repo.Read("s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionWriteOverwrites(t *testing.T) {
	repo := NewSessionRepository(t.TempDir())
	now := time.Now().UTC()
	record := newRecord("s1", now)
	require.NoError(t, repo.Create(record))

	sealedAt := now.Add(time.Minute)
	record.SealedAt = &sealedAt
	record.Counts = models.SessionCounts{Files: 3, TotalBytes: 1234}
	require.NoError(t, repo.Write("s1", record))

	got, err := repo.Read("s1")
	require.NoError(t, err)
	assert.True(t, got.Sealed())
	assert.Equal(t, 3, got.Counts.Files)
	assert.Equal(t, int64(1234), got.Counts.TotalBytes)
}

func TestSessionExpiryBoundary(t *testing.T) {
	now := time.Now().UTC()
	record := newRecord("s1", now)

	assert.False(t, record.Expired(record.ExpiresAt))                      // exactly at expiry: still valid
	assert.False(t, record.Expired(record.ExpiresAt.Add(-time.Millisecond)))
	assert.True(t, record.Expired(record.ExpiresAt.Add(time.Millisecond)))
}
