package embedding

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/face-registry/internal/constants"
)

// PrepareImage validates an upload and makes it suitable for the embedding server.
// JPEG and PNG uploads within maxSize are passed through unchanged. Larger images are scaled
// down to fit within maxSize and everything else is re-encoded as JPEG.
//
// The header is checked first: images declaring more than MaxImagePixels are rejected
// without decoding the pixel data.
func PrepareImage(data []byte, maxSize int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > constants.MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageDecode, cfg.Width, cfg.Height, constants.MaxImagePixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrImageDecode)
	}

	// Check if resizing is needed.
	if width <= maxSize && height <= maxSize {
		if format == "jpeg" || format == "png" {
			return data, nil
		}
		return encodeJPEG(img)
	}

	// Calculate new dimensions.
	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	return encodeJPEG(resized)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: constants.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
