package service

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crennie/image-web-convert/common/config"
)

func testImageConfig() config.ImageConfig {
	return config.ImageConfig{
		Quality:          85,
		MaxDimension:     8192,
		AnimatedPolicy:   "first-frame",
		LimitInputPixels: 200_000_000,
	}
}

// writeTempPNG renders a solid test image and writes it to a temp file
func writeTempPNG(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(t.TempDir(), "input.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

// writeTempGIF writes a gif with the given number of frames
func writeTempGIF(t *testing.T, frames int) string {
	t.Helper()
	g := &gif.GIF{}
	for i := 0; i < frames; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, 10, 10), palette.Plan9)
		g.Image = append(g.Image, frame)
		g.Delay = append(g.Delay, 10)
	}

	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))

	path := filepath.Join(t.TempDir(), "input.gif")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestConvertRejectsNonImage(t *testing.T) {
	svc := NewImageService(testImageConfig(), testLogger())
	path := filepath.Join(t.TempDir(), "not-an-image.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text, no magic bytes"), 0o644))

	_, err := svc.Convert(path, "image/jpeg")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestConvertPNGToJPEG(t *testing.T) {
	svc := NewImageService(testImageConfig(), testLogger())
	path := writeTempPNG(t, 40, 30, color.NRGBA{R: 200, G: 10, B: 10, A: 255})

	result, err := svc.Convert(path, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "image/png", result.Input.Mime)
	assert.Equal(t, 40, result.Input.Width)
	assert.Equal(t, 30, result.Input.Height)
	assert.Equal(t, 1, result.Input.Pages)

	assert.Equal(t, "image/jpeg", result.Output.Mime)
	assert.Equal(t, 40, result.Output.Width)
	assert.Equal(t, 30, result.Output.Height)
	assert.Equal(t, int64(len(result.Data)), result.Output.SizeBytes)
	assert.Equal(t, "srgb", result.Output.ColorSpace)
	assert.True(t, result.Output.ExifStripped)
	assert.False(t, result.Output.Animated)

	// Output really is a jpeg
	_, format, err := image.DecodeConfig(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestConvertDetectsAlpha(t *testing.T) {
	svc := NewImageService(testImageConfig(), testLogger())
	path := writeTempPNG(t, 10, 10, color.NRGBA{R: 0, G: 0, B: 0, A: 128})

	result, err := svc.Convert(path, "image/png")
	require.NoError(t, err)
	assert.True(t, result.Input.HasAlpha)
}

func TestConvertFitsLargeImageWithoutUpscaling(t *testing.T) {
	cfg := testImageConfig()
	cfg.MaxDimension = 64
	svc := NewImageService(cfg, testLogger())

	t.Run("downscale preserving aspect ratio", func(t *testing.T) {
		path := writeTempPNG(t, 100, 50, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
		result, err := svc.Convert(path, "image/png")
		require.NoError(t, err)
		assert.Equal(t, 64, result.Output.Width)
		assert.Equal(t, 32, result.Output.Height)
		// probed input dims are pre-resize
		assert.Equal(t, 100, result.Input.Width)
	})

	t.Run("small image stays untouched", func(t *testing.T) {
		path := writeTempPNG(t, 20, 10, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
		result, err := svc.Convert(path, "image/png")
		require.NoError(t, err)
		assert.Equal(t, 20, result.Output.Width)
		assert.Equal(t, 10, result.Output.Height)
	})
}

func TestConvertPixelLimit(t *testing.T) {
	cfg := testImageConfig()
	cfg.LimitInputPixels = 100
	svc := NewImageService(cfg, testLogger())
	path := writeTempPNG(t, 20, 20, color.NRGBA{A: 255})

	_, err := svc.Convert(path, "image/png")
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestConvertAnimatedPolicy(t *testing.T) {
	t.Run("reject policy fails animated gif", func(t *testing.T) {
		cfg := testImageConfig()
		cfg.AnimatedPolicy = AnimatedPolicyReject
		svc := NewImageService(cfg, testLogger())

		_, err := svc.Convert(writeTempGIF(t, 3), "image/png")
		assert.ErrorIs(t, err, ErrAnimatedNotSupported)
	})

	t.Run("first-frame policy keeps one frame", func(t *testing.T) {
		svc := NewImageService(testImageConfig(), testLogger())

		result, err := svc.Convert(writeTempGIF(t, 3), "image/png")
		require.NoError(t, err)
		assert.Equal(t, 3, result.Input.Pages)
		assert.False(t, result.Output.Animated)
	})

	t.Run("single-frame gif passes either policy", func(t *testing.T) {
		cfg := testImageConfig()
		cfg.AnimatedPolicy = AnimatedPolicyReject
		svc := NewImageService(cfg, testLogger())

		result, err := svc.Convert(writeTempGIF(t, 1), "image/png")
		require.NoError(t, err)
		assert.Equal(t, 1, result.Input.Pages)
	})
}

func TestConvertRejectsUnknownTarget(t *testing.T) {
	svc := NewImageService(testImageConfig(), testLogger())
	path := writeTempPNG(t, 4, 4, color.NRGBA{A: 255})

	_, err := svc.Convert(path, "image/tiff")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestAllowedOutputType(t *testing.T) {
	assert.True(t, AllowedOutputType("image/webp"))
	assert.True(t, AllowedOutputType("image/jpeg"))
	assert.True(t, AllowedOutputType("image/png"))
	assert.False(t, AllowedOutputType("image/gif"))
	assert.False(t, AllowedOutputType(""))

	assert.Equal(t, ".jpg", OutputExt("image/jpeg"))
	assert.Equal(t, ".webp", OutputExt("image/webp"))
}

func TestWebpFramesProbe(t *testing.T) {
	// Not a RIFF container at all
	assert.Equal(t, 1, webpFrames([]byte("definitely not a webp header")))
	// Too short
	assert.Equal(t, 1, webpFrames([]byte("RIFF")))
}
