package recognition

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageBytes bounds an uploaded capture.
	MaxImageBytes = 10 << 20
	// MaxImageSide is the longest side sent to the inference server.
	MaxImageSide = 1280
	minImageSide = 32
)

// ImageInfo describes a validated image.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// ValidateImage checks that data is a decodable image of sensible size.
// Anything else is an input error.
func ValidateImage(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, apperror.Input("empty image")
	}
	if len(data) > MaxImageBytes {
		return ImageInfo{}, apperror.Input("image too large (%d bytes, max %d)", len(data), MaxImageBytes)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, apperror.Input("unsupported or corrupt image: %v", err)
	}
	if cfg.Width < minImageSide || cfg.Height < minImageSide {
		return ImageInfo{}, apperror.Input("image too small (%dx%d)", cfg.Width, cfg.Height)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// DecodeBase64Image decodes a base64 capture, with or without a data URL prefix.
func DecodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return nil, apperror.Input("empty image")
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, apperror.Input("image is not valid base64: %v", err)
	}
	return data, nil
}

// PrepareImage resizes an image to fit within maxSide while keeping aspect
// ratio and re-encodes it as JPEG. Smaller JPEG input is passed through.
func PrepareImage(data []byte, maxSide int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperror.Input("failed to decode image: %v", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSide && height <= maxSide {
		if format == "jpeg" {
			return data, nil
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		return buf.Bytes(), nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSide
		newHeight = int(float64(height) * float64(maxSide) / float64(width))
	} else {
		newHeight = maxSide
		newWidth = int(float64(width) * float64(maxSide) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
