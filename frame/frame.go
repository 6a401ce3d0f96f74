// Package frame decodes and rescales the video frames carried on the stream.
package frame

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
)

// Frame errors
var (
	ErrEmptyFrame        = errors.New("frame: empty frame data")
	ErrInvalidImage      = errors.New("frame: invalid image data")
	ErrInvalidDimensions = errors.New("frame: invalid dimensions")
)

// DefaultJPEGQuality is used when a downscaled frame is re-encoded.
const DefaultJPEGQuality = 85

// DecodeImage decodes JPEG or PNG bytes.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// Downscale returns img scaled to maxWidth keeping its aspect ratio. Images
// already within maxWidth are returned unchanged; frames are never upscaled.
func Downscale(img image.Image, maxWidth int) (image.Image, error) {
	if maxWidth < 1 {
		return nil, ErrInvalidDimensions
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxWidth {
		return img, nil
	}

	scale := float64(maxWidth) / float64(width)
	newHeight := max(int(float64(height)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst, nil
}

// Fit returns data as-is when the image is at most maxWidth wide, otherwise
// a downscaled JPEG.
func Fit(data []byte, maxWidth int) ([]byte, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() <= maxWidth {
		return data, nil
	}

	scaled, err := Downscale(img, maxWidth)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: DefaultJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType sniffs the image type, defaulting to image/jpeg.
func ContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

// DataURI renders data as a data: URI for an <img> src. Empty input gives
// an empty string, which the dashboard treats as "no image".
func DataURI(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return "data:" + ContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}
