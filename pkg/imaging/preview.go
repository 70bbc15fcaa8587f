package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultPreviewSize is the bounding box for generated preview thumbnails.
const DefaultPreviewSize = 200

// Thumbnail scales img down so its longer edge fits maxSize, preserving
// aspect ratio. Images already within the box are returned unchanged.
func Thumbnail(img image.Image, maxSize int) image.Image {
	if maxSize <= 0 {
		maxSize = DefaultPreviewSize
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxSize && h <= maxSize {
		return img
	}

	outW, outH := maxSize, maxSize
	if w > h {
		outH = h * maxSize / w
	} else {
		outW = w * maxSize / h
	}
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)
	return scaled
}

// EncodeJPEG renders img as JPEG bytes suitable for a preview object.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("imaging: encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
