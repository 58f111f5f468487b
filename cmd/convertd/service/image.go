package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/jdeng/goheif"

	// Register webp decoding for image.DecodeConfig and imaging.Decode.
	// bmp and tiff decoders are registered by the imaging import.
	_ "golang.org/x/image/webp"

	"github.com/crennie/image-web-convert/common/config"
	"github.com/crennie/image-web-convert/common/logger"
)

// Conversion failure modes surfaced per file
var (
	ErrUnsupportedType      = errors.New("unsupported or unrecognized image type")
	ErrAnimatedNotSupported = errors.New("animated images are not supported in this mode")
	ErrInputTooLarge        = errors.New("input image exceeds the configured pixel limit")
)

// AnimatedPolicyReject rejects multi-frame inputs; the default policy keeps
// only the first frame
const AnimatedPolicyReject = "reject"

// allowedInputMime is the magic-byte allow-list. The sniffed type decides,
// never the client-declared one. AVIF is sniffable but has no pure-Go
// decoder, so it stays off the list.
var allowedInputMime = map[string]bool{
	"image/jpeg":          true,
	"image/png":           true,
	"image/webp":          true,
	"image/gif":           true,
	"image/tiff":          true,
	"image/bmp":           true,
	"image/heic":          true,
	"image/heif":          true,
	"image/heic-sequence": true,
	"image/heif-sequence": true,
}

// outputExt maps supported output types to stored-file extensions
var outputExt = map[string]string{
	"image/webp": ".webp",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// AllowedOutputType reports whether mime is a supported conversion target
func AllowedOutputType(mime string) bool {
	_, ok := outputExt[mime]
	return ok
}

// OutputExt returns the stored-file extension for a supported output type
func OutputExt(mime string) string {
	return outputExt[mime]
}

// InputMeta describes the source image as sniffed and probed
type InputMeta struct {
	Mime     string
	Width    int
	Height   int
	HasAlpha bool
	Pages    int
}

// OutputMeta describes the re-encoded result
type OutputMeta struct {
	Mime         string
	Width        int
	Height       int
	SizeBytes    int64
	ColorSpace   string
	Animated     bool
	ExifStripped bool
}

// ConvertResult is the full outcome of one conversion
type ConvertResult struct {
	Data   []byte
	Output OutputMeta
	Input  InputMeta
}

// ImageService anonymizes, normalizes, and re-encodes uploaded images
type ImageService struct {
	cfg config.ImageConfig
	log *logger.Logger
}

// NewImageService creates a new image service
func NewImageService(cfg config.ImageConfig, log *logger.Logger) *ImageService {
	return &ImageService{
		cfg: cfg,
		log: log,
	}
}

// Convert processes one temp file into the target output type: magic-byte
// sniff, optional HEIF pre-conversion, structural probe, policy checks,
// orientation-corrected decode, sRGB normalization, fit-resize, re-encode.
// Metadata is stripped by construction: only pixel data survives the decode.
func (s *ImageService) Convert(inputPath, targetMime string) (*ConvertResult, error) {
	start := time.Now()

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	// 1) Magic-byte sniff; the client-declared type is never trusted
	sniffed := mimetype.Detect(data).String()
	if !allowedInputMime[sniffed] {
		if sniffed == "application/octet-stream" {
			return nil, ErrUnsupportedType
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, sniffed)
	}

	// 2) Best-effort HEIF pre-conversion; on failure the original bytes go
	// to the core decoder unchanged
	working := data
	if isHeifFamily(sniffed) {
		if converted := s.preConvertHeif(data); converted != nil {
			working = converted
		}
	}

	// 3) Structural probe without a full decode
	cfg, format, err := image.DecodeConfig(bytes.NewReader(working))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}

	if limit := s.cfg.LimitInputPixels; limit > 0 && int64(cfg.Width)*int64(cfg.Height) > limit {
		return nil, fmt.Errorf("%w: %dx%d", ErrInputTooLarge, cfg.Width, cfg.Height)
	}

	pages := s.probePages(working, format)
	hasAlpha := modelHasAlpha(cfg.ColorModel)

	// 4) Animation policy; only the header read happened so far
	if pages > 1 && s.cfg.AnimatedPolicy == AnimatedPolicyReject {
		return nil, ErrAnimatedNotSupported
	}

	// 5) Decode first frame with EXIF orientation applied, then normalize
	// to 8-bit sRGB and cap the long edge without ever upscaling
	img, err := imaging.Decode(bytes.NewReader(working), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	out := imaging.Clone(img)
	if max := s.cfg.MaxDimension; max > 0 {
		b := out.Bounds()
		if b.Dx() > max || b.Dy() > max {
			out = imaging.Fit(out, max, max, imaging.Lanczos)
		}
	}

	encoded, err := s.encode(out, targetMime)
	if err != nil {
		return nil, err
	}

	bounds := out.Bounds()
	result := &ConvertResult{
		Data: encoded,
		Output: OutputMeta{
			Mime:         targetMime,
			Width:        bounds.Dx(),
			Height:       bounds.Dy(),
			SizeBytes:    int64(len(encoded)),
			ColorSpace:   "srgb",
			Animated:     false,
			ExifStripped: true,
		},
		Input: InputMeta{
			Mime:     sniffed,
			Width:    cfg.Width,
			Height:   cfg.Height,
			HasAlpha: hasAlpha,
			Pages:    pages,
		},
	}

	s.log.Debug("image converted",
		"input_mime", sniffed,
		"output_mime", targetMime,
		"input_size", len(data),
		"output_size", len(encoded),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// encode re-encodes the normalized frame into the target type
func (s *ImageService) encode(img image.Image, targetMime string) ([]byte, error) {
	var buf bytes.Buffer

	switch targetMime {
	case "image/webp":
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(s.cfg.Quality)}); err != nil {
			return nil, fmt.Errorf("failed to encode webp: %w", err)
		}
	case "image/jpeg":
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.cfg.Quality)); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	case "image/png":
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, targetMime)
	}

	return buf.Bytes(), nil
}

// preConvertHeif transcodes a HEIF-family container to a JPEG intermediate.
// Returns nil when the container cannot be decoded; the caller falls back to
// the original bytes.
func (s *ImageService) preConvertHeif(data []byte) []byte {
	img, err := goheif.Decode(bytes.NewReader(data))
	if err != nil {
		s.log.Warn("heif pre-conversion failed, falling back to original bytes", "error", err)
		return nil
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		s.log.Warn("heif intermediate encode failed, falling back to original bytes", "error", err)
		return nil
	}

	return buf.Bytes()
}

// probePages counts frames/pages without committing to a full pixel decode.
// GIF frame counts come from the container directory; WebP animation is read
// from the VP8X header and ANMF chunk markers.
func (s *ImageService) probePages(data []byte, format string) int {
	switch format {
	case "gif":
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil || len(g.Image) == 0 {
			return 1
		}
		return len(g.Image)
	case "webp":
		return webpFrames(data)
	default:
		return 1
	}
}

// webpFrames inspects the RIFF container for the VP8X animation flag
func webpFrames(data []byte) int {
	if len(data) < 21 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return 1
	}
	if string(data[12:16]) != "VP8X" || data[20]&0x02 == 0 {
		return 1
	}
	if n := bytes.Count(data, []byte("ANMF")); n > 1 {
		return n
	}
	return 2
}

// modelHasAlpha reports whether the probed color model can carry alpha
func modelHasAlpha(m color.Model) bool {
	switch m {
	case color.NRGBAModel, color.RGBAModel, color.NRGBA64Model, color.RGBA64Model, color.AlphaModel, color.Alpha16Model:
		return true
	}
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}

func isHeifFamily(mime string) bool {
	switch mime {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence":
		return true
	}
	return false
}
