package service

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crennie/image-web-convert/cmd/convertd/models"
	"github.com/crennie/image-web-convert/cmd/convertd/repository"
)

func newFilesFixture(t *testing.T) (*FilesService, *repository.UploadMetaRepository, string) {
	t.Helper()
	baseDir := t.TempDir()
	meta := repository.NewUploadMetaRepository(baseDir)
	files := NewFilesService(meta, testLogger())

	sid := "test-session"
	require.NoError(t, os.MkdirAll(filepath.Join(baseDir, sid), 0o755))
	return files, meta, sid
}

// seedUpload persists one fake asset plus its sidecar
func seedUpload(t *testing.T, meta *repository.UploadMetaRepository, sid, id, originalName string, content []byte) {
	t.Helper()
	storedName := id + ".webp"
	require.NoError(t, meta.WriteAsset(sid, storedName, content))
	require.NoError(t, meta.WriteMeta(sid, &models.UploadMeta{
		ID:       id,
		Original: models.OriginalInfo{Name: originalName},
		Output: models.OutputInfo{
			StoredName: storedName,
			Mime:       "image/webp",
			SizeBytes:  int64(len(content)),
		},
		UploadedAt: time.Now().UTC(),
	}))
}

func TestResolvePartitionsFoundAndMissing(t *testing.T) {
	files, meta, sid := newFilesFixture(t)
	seedUpload(t, meta, sid, "id1", "photo.png", []byte("one"))
	seedUpload(t, meta, sid, "id2", "other.png", []byte("two"))

	found, missing := files.Resolve(sid, []string{"id2", "nope", "id1"})

	require.Len(t, found, 2)
	assert.Equal(t, []string{"nope"}, missing)
	// found preserves the request order
	assert.Equal(t, "id2", found[0].ID)
	assert.Equal(t, "id1", found[1].ID)
	assert.Equal(t, "other.webp", found[0].DownloadName)
	assert.Equal(t, "photo.webp", found[1].DownloadName)
}

func TestResolveMissingAssetCountsAsMissing(t *testing.T) {
	files, meta, sid := newFilesFixture(t)
	seedUpload(t, meta, sid, "id1", "photo.png", []byte("one"))
	require.NoError(t, os.Remove(meta.AssetPath(sid, "id1.webp")))

	found, missing := files.Resolve(sid, []string{"id1"})
	assert.Empty(t, found)
	assert.Equal(t, []string{"id1"}, missing)
}

func TestResolveUniquifiesArchiveNames(t *testing.T) {
	files, meta, sid := newFilesFixture(t)
	seedUpload(t, meta, sid, "id1", "image.png", []byte("a"))
	seedUpload(t, meta, sid, "id2", "image.jpg", []byte("b"))
	seedUpload(t, meta, sid, "id3", "image.heic", []byte("c"))

	found, missing := files.Resolve(sid, []string{"id1", "id2", "id3"})
	require.Empty(t, missing)
	require.Len(t, found, 3)

	assert.Equal(t, "image.webp", found[0].ArchiveName)
	assert.Equal(t, "image (2).webp", found[1].ArchiveName)
	assert.Equal(t, "image (3).webp", found[2].ArchiveName)
	// single-download names stay un-suffixed
	assert.Equal(t, "image.webp", found[1].DownloadName)
}

func TestStreamZipRoundTrip(t *testing.T) {
	files, meta, sid := newFilesFixture(t)
	seedUpload(t, meta, sid, "id1", "first.png", []byte("payload-one"))
	seedUpload(t, meta, sid, "id2", "second.png", []byte("payload-two"))

	found, _ := files.Resolve(sid, []string{"id1", "id2"})
	rec := httptest.NewRecorder()

	err := files.StreamZip(context.Background(), rec, found, "holiday")
	require.NoError(t, err)

	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="holiday.zip"`)

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	assert.Equal(t, "first.webp", zr.File[0].Name)
	assert.Equal(t, "second.webp", zr.File[1].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload-one", buf.String())
}

func TestStreamZipClientAbortIsNotAnError(t *testing.T) {
	files, meta, sid := newFilesFixture(t)
	seedUpload(t, meta, sid, "id1", "first.png", []byte("payload"))

	found, _ := files.Resolve(sid, []string{"id1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // client is already gone

	rec := httptest.NewRecorder()
	assert.NoError(t, files.StreamZip(ctx, rec, found, ""))
}

func TestSanitizeArchiveName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty defaults", "", "images.zip"},
		{"whitespace defaults", "   ", "images.zip"},
		{"extension appended", "holiday", "holiday.zip"},
		{"extension kept", "holiday.zip", "holiday.zip"},
		{"case insensitive suffix", "holiday.ZIP", "holiday.ZIP"},
		{"path stripped", "../../evil", "evil.zip"},
		{"unsafe characters", `my:archive`, "my_archive.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeArchiveName(tt.in))
		})
	}
}

func TestBuildContentDisposition(t *testing.T) {
	got := BuildContentDisposition("mañana.webp")
	assert.Contains(t, got, "attachment;")
	assert.Contains(t, got, `filename="ma_ana.webp"`) // ASCII fallback
	assert.Contains(t, got, "filename*=UTF-8''ma%C3%B1ana.webp")
}
