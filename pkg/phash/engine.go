package phash

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Default engine parameters. A 32x32 luminance grid reduced to an 8x8
// coefficient block yields a 64-bit fingerprint.
const (
	DefaultHashSize   = 8
	DefaultSampleSize = 32
)

// Engine computes perceptual fingerprints from decoded images. The zero
// value is not usable; construct with NewEngine. An Engine is stateless and
// safe for concurrent use.
type Engine struct {
	hashSize   int
	sampleSize int
	scaler     draw.Scaler
}

// NewEngine returns an Engine with the given parameters. Zero or negative
// values select the defaults. sampleSize must not be smaller than hashSize.
func NewEngine(hashSize, sampleSize int) (*Engine, error) {
	if hashSize <= 0 {
		hashSize = DefaultHashSize
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if sampleSize < hashSize {
		return nil, fmt.Errorf("phash: sample size %d smaller than hash size %d", sampleSize, hashSize)
	}
	return &Engine{
		hashSize:   hashSize,
		sampleSize: sampleSize,
		scaler:     draw.CatmullRom,
	}, nil
}

// HashSize returns the fingerprint matrix edge length.
func (e *Engine) HashSize() int { return e.hashSize }

// Compute derives a fingerprint from img:
//
//  1. Convert to luminance and resample to a sampleSize grid with a
//     high-quality filter, fixing input-resolution independence.
//  2. Apply an orthonormal 2D DCT-II (rows, then columns).
//  3. Keep the top-left hashSize block of low-frequency coefficients.
//  4. Threshold each coefficient against the block mean, excluding the
//     (0,0) DC term so overall brightness does not affect the result.
//
// The (0,0) bit is forced to zero. The result is deterministic for
// identical pixels and parameters, and is not invariant to rotation,
// flipping or cropping.
func (e *Engine) Compute(img image.Image) (*Fingerprint, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrEmptyImage
	}

	grid := e.luminanceGrid(img)
	coeffs := dct2D(grid)

	block := make([]float64, 0, e.hashSize*e.hashSize)
	for row := 0; row < e.hashSize; row++ {
		for col := 0; col < e.hashSize; col++ {
			block = append(block, coeffs[row][col])
		}
	}

	// Mean over the block excluding the DC term at index 0.
	sum := 0.0
	for _, c := range block[1:] {
		sum += c
	}
	mean := sum / float64(len(block)-1)

	bitmap := make([]bool, len(block))
	for i, c := range block {
		bitmap[i] = c > mean
	}
	bitmap[0] = false

	return newFingerprint(e.hashSize, bitmap), nil
}

// luminanceGrid resamples img to sampleSize x sampleSize and converts it to
// ITU-R 601-2 luminance values in [0, 255].
func (e *Engine) luminanceGrid(img image.Image) [][]float64 {
	scaled := image.NewRGBA(image.Rect(0, 0, e.sampleSize, e.sampleSize))
	e.scaler.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	grid := make([][]float64, e.sampleSize)
	for y := 0; y < e.sampleSize; y++ {
		row := make([]float64, e.sampleSize)
		for x := 0; x < e.sampleSize; x++ {
			offset := scaled.PixOffset(x, y)
			r := float64(scaled.Pix[offset])
			g := float64(scaled.Pix[offset+1])
			b := float64(scaled.Pix[offset+2])
			row[x] = 0.299*r + 0.587*g + 0.114*b
		}
		grid[y] = row
	}
	return grid
}

// dct1D computes the DCT-II of vector with orthonormal scaling: sqrt(1/N)
// for the zero-frequency term and sqrt(2/N) for all others.
func dct1D(vector []float64) []float64 {
	n := len(vector)
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		sum := 0.0
		for i, v := range vector {
			sum += v * math.Cos(math.Pi*(float64(i)+0.5)*float64(k)/float64(n))
		}
		if k == 0 {
			out[k] = sum * math.Sqrt(1.0/float64(n))
		} else {
			out[k] = sum * math.Sqrt(2.0/float64(n))
		}
	}
	return out
}

// dct2D applies dct1D to every row of matrix, then to every column of the
// row-transformed result. Low-frequency coefficients end up top-left.
func dct2D(matrix [][]float64) [][]float64 {
	rows := len(matrix)
	cols := len(matrix[0])

	rowPass := make([][]float64, rows)
	for i, row := range matrix {
		rowPass[i] = dct1D(row)
	}

	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			column[i] = rowPass[i][j]
		}
		transformed := dct1D(column)
		for i := 0; i < rows; i++ {
			out[i][j] = transformed[i]
		}
	}
	return out
}
