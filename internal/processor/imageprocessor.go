// imageprocessor.go - Preprocessing of uploaded product photos before they are
// sent to the model. Large phone photos are downscaled to keep requests under
// the payload limit; color is preserved since it matters for identification.

package processor

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/snapfind/product_scout_gemini/configs"
)

// Preprocess downscales and re-encodes an uploaded photo. If the bytes cannot
// be decoded as an image, the original data is returned unchanged with its
// sniffed MIME type and the caller lets the model decide.
func Preprocess(data []byte) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data, DetectMIMEType(data), nil
	}

	maxDimension := configs.MAX_IMAGE_DIMENSION
	if maxDimension <= 0 {
		maxDimension = 2000
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxDimension || height > maxDimension {
		if width > height {
			img = imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
		}
	}

	// Mild sharpening helps label and logo legibility after downscaling.
	img = imaging.Sharpen(img, 0.8)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", fmt.Errorf("failed to encode processed image: %w", err)
	}

	return buf.Bytes(), "image/jpeg", nil
}

// DetectMIMEType sniffs the content type of raw image bytes.
func DetectMIMEType(data []byte) string {
	mime := http.DetectContentType(data)
	if mime == "application/octet-stream" {
		// Common for partial sniffs of camera uploads.
		return "image/jpeg"
	}
	return mime
}
