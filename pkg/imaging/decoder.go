// Package imaging provides image decoding and preview generation for the
// catalog. Format support is pluggable: the standard decoder covers common
// raster formats, while HDR formats are decoded by external collaborators
// that hand their float frames to ToneMap.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode marks an unreadable or corrupt source file. Ingestion treats
// such assets as un-hashable and skips them instead of storing a null hash.
var ErrDecode = errors.New("imaging: decode failed")

// Decoder produces a normalized pixel buffer from a file on disk or from
// an in-memory payload.
type Decoder interface {
	Decode(path string) (image.Image, error)
	DecodeBytes(data []byte) (image.Image, error)
}

// StdDecoder decodes the raster formats registered with the standard image
// package: PNG, JPEG, GIF, WebP, BMP and TIFF.
type StdDecoder struct{}

// NewStdDecoder returns a decoder for common raster formats.
func NewStdDecoder() *StdDecoder {
	return &StdDecoder{}
}

// Decode reads and decodes the image at path. Failures are wrapped with
// ErrDecode so callers can classify them without inspecting messages.
func (d *StdDecoder) Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDecode, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %s: empty pixel buffer", ErrDecode, path)
	}
	return img, nil
}

// DecodeBytes decodes an in-memory payload, as received from an upload.
func (d *StdDecoder) DecodeBytes(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty pixel buffer", ErrDecode)
	}
	return img, nil
}

// FloatFrame is a linear RGB frame as produced by HDR decoders, indexed
// [y][x][channel] with an arbitrary positive range.
type FloatFrame [][][3]float64

// ToneMap reduces an HDR frame to 8-bit range by dividing by the frame
// maximum. A frame whose maximum is not positive maps to an all-zero image.
func ToneMap(frame FloatFrame) (image.Image, error) {
	if len(frame) == 0 || len(frame[0]) == 0 {
		return nil, fmt.Errorf("%w: empty HDR frame", ErrDecode)
	}
	height := len(frame)
	width := len(frame[0])

	max := 0.0
	for _, row := range frame {
		if len(row) != width {
			return nil, fmt.Errorf("%w: ragged HDR frame", ErrDecode)
		}
		for _, px := range row {
			for _, c := range px {
				if c > max {
					max = c
				}
			}
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if max <= 0 {
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 255
		}
		return img, nil
	}

	for y, row := range frame {
		for x, px := range row {
			offset := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				img.Pix[offset+c] = clamp8(px[c] / max * 255)
			}
			img.Pix[offset+3] = 255
		}
	}
	return img, nil
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
