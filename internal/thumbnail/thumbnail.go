package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder

	"github.com/disintegration/imaging"
)

// DefaultMaxWidth bounds thumbnails for catalog presentation.
const DefaultMaxWidth = 192

// ErrUnsupportedMedia is returned when the input is not a decodable raster image.
var ErrUnsupportedMedia = errors.New("unsupported media: not a decodable image")

// Deriver produces bounded-width JPEG thumbnails from image bytes. Pure
// transform: deterministic output for identical input and width, no side
// effects.
type Deriver struct {
	maxWidth int
}

// NewDeriver creates a deriver with the given width bound. Zero or negative
// widths fall back to DefaultMaxWidth.
func NewDeriver(maxWidth int) *Deriver {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Deriver{maxWidth: maxWidth}
}

// MaxWidth returns the configured width bound.
func (d *Deriver) MaxWidth() int {
	return d.maxWidth
}

// Derive decodes the image, scales it down to the width bound preserving
// aspect ratio (never upscaling), and encodes the result as JPEG.
func (d *Deriver) Derive(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}

	if img.Bounds().Dx() > d.maxWidth {
		// Height 0 preserves the source aspect ratio
		img = imaging.Resize(img, d.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
