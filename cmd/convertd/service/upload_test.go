package service

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crennie/image-web-convert/cmd/convertd/repository"
)

func newUploadFixture(t *testing.T) (*UploadService, *repository.UploadMetaRepository, string) {
	t.Helper()
	baseDir := t.TempDir()
	tmpDir := t.TempDir()

	meta := repository.NewUploadMetaRepository(baseDir)
	images := NewImageService(testImageConfig(), testLogger())
	uploads := NewUploadService(images, meta, tmpDir, testLogger())

	// sessions own their storage area; tests allocate it directly
	sid := "test-session"
	require.NoError(t, os.MkdirAll(filepath.Join(baseDir, sid), 0o755))
	return uploads, meta, sid
}

func stagedFile(t *testing.T, name, path, correlationID string) RawUpload {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return RawUpload{
		FileName:      name,
		TempPath:      path,
		SizeBytes:     info.Size(),
		CorrelationID: correlationID,
	}
}

func TestSaveBatchIsolatesFailures(t *testing.T) {
	uploads, meta, sid := newUploadFixture(t)

	good1 := writeTempPNG(t, 8, 8, color.NRGBA{R: 10, A: 255})
	bad := filepath.Join(t.TempDir(), "junk.bin")
	require.NoError(t, os.WriteFile(bad, []byte("not an image at all"), 0o644))
	good2 := writeTempPNG(t, 8, 8, color.NRGBA{R: 20, A: 255})

	accepted, rejected := uploads.SaveBatch(context.Background(), sid, "image/png", []RawUpload{
		stagedFile(t, "first.png", good1, "c-1"),
		stagedFile(t, "junk.bin", bad, "c-2"),
		stagedFile(t, "second.png", good2, "c-3"),
	})

	require.Len(t, accepted, 2)
	require.Len(t, rejected, 1)

	// order of accepted entries follows input order
	assert.Equal(t, "first.png", accepted[0].Meta.Original.Name)
	assert.Equal(t, "second.png", accepted[1].Meta.Original.Name)

	assert.Equal(t, "junk.bin", rejected[0].FileName)
	assert.Equal(t, "c-2", rejected[0].CorrelationID)
	assert.NotEmpty(t, rejected[0].Error)

	// accepted assets and sidecars are on disk, temp inputs are gone
	for _, a := range accepted {
		assert.True(t, meta.AssetExists(sid, a.Meta.Output.StoredName))
		got, err := meta.ReadMeta(sid, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
	}
	assert.NoFileExists(t, good1)
	assert.NoFileExists(t, good2)
	assert.FileExists(t, bad) // failed conversions keep their staged input
}

func TestSaveBatchAllFailures(t *testing.T) {
	uploads, _, sid := newUploadFixture(t)

	bad := filepath.Join(t.TempDir(), "junk.bin")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))

	accepted, rejected := uploads.SaveBatch(context.Background(), sid, "image/png", []RawUpload{
		stagedFile(t, "junk.bin", bad, ""),
	})
	assert.Empty(t, accepted)
	assert.Len(t, rejected, 1)
}

func TestSaveBatchBuildsURLs(t *testing.T) {
	uploads, _, sid := newUploadFixture(t)
	good := writeTempPNG(t, 8, 8, color.NRGBA{A: 255})

	accepted, _ := uploads.SaveBatch(context.Background(), sid, "image/png", []RawUpload{
		stagedFile(t, "photo.png", good, ""),
	})
	require.Len(t, accepted, 1)

	a := accepted[0]
	assert.Equal(t, "/api/v1/sessions/"+sid+"/files/"+a.ID, a.URL)
	assert.Equal(t, a.URL+"/meta", a.MetaURL)
	assert.Equal(t, a.ID+".png", a.Meta.Output.StoredName)
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "photo.png", "photo.png"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"windows path", `C:\Users\me\photo.png`, "photo.png"},
		{"unsafe characters", `my:photo?.png`, "my_photo_.png"},
		{"whitespace runs", "my   holiday   photo.png", "my holiday photo.png"},
		{"control characters", "pho\x00to.png", "photo.png"},
		{"unicode kept", "fotografía.png", "fotografía.png"},
		{"empty", "", "upload"},
		{"dot only", ".", "upload"},
		{"dot dot", "..", "upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.in))
		})
	}
}
