package tagging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration
)

const jpegQuality = 90

// PrepareArtwork decodes an image, scales it to fit within maxPx on its
// longest side while keeping the aspect ratio, and re-encodes it as JPEG.
// A maxPx of zero keeps the original dimensions.
func PrepareArtwork(data []byte, maxPx int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode artwork: %w", err)
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxPx)
	if width != bounds.Dx() || height != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode artwork: %w", err)
	}
	return buf.Bytes(), nil
}

func fitWithin(width, height, maxPx int) (int, int) {
	if maxPx <= 0 || width <= 0 || height <= 0 || (width <= maxPx && height <= maxPx) {
		return width, height
	}
	if width >= height {
		return maxPx, max(1, height*maxPx/width)
	}
	return max(1, width*maxPx/height), maxPx
}
