// Package phash implements a DCT-based perceptual hash for raster and HDR
// imagery. Fingerprints of visually similar images have a small Hamming
// distance; the catalog uses exact fingerprint equality as its dedup key and
// leaves distance-threshold policy to callers.
package phash

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSizeMismatch is returned when comparing fingerprints of different
	// dimensions. This is a usage error, not a "very different" result.
	ErrSizeMismatch = errors.New("phash: fingerprints must have the same size")

	// ErrEmptyImage is returned when the input has no pixels to hash.
	ErrEmptyImage = errors.New("phash: image is nil or has empty bounds")
)

// Fingerprint is an immutable square bit matrix derived from the
// low-frequency DCT coefficients of an image. The zero value is not usable;
// fingerprints are produced by Engine.Compute or ParseHex.
type Fingerprint struct {
	size int
	bits []bool // row-major, len = size*size
}

func newFingerprint(size int, bitmap []bool) *Fingerprint {
	return &Fingerprint{size: size, bits: bitmap}
}

// Size returns the matrix edge length (e.g. 8 for a 64-bit fingerprint).
func (f *Fingerprint) Size() int {
	if f == nil {
		return 0
	}
	return f.size
}

// BitCount returns the total number of bits in the fingerprint.
func (f *Fingerprint) BitCount() int {
	if f == nil {
		return 0
	}
	return len(f.bits)
}

// Bit reports whether the bit at (row, col) is set.
func (f *Fingerprint) Bit(row, col int) bool {
	return f.bits[row*f.size+col]
}

// Equal reports exact bit-equality. Fingerprints of different sizes are
// never equal.
func (f *Fingerprint) Equal(other *Fingerprint) bool {
	if f == nil || other == nil {
		return false
	}
	if f.size != other.size {
		return false
	}
	for i := range f.bits {
		if f.bits[i] != other.bits[i] {
			return false
		}
	}
	return true
}

// Distance returns the Hamming distance between two fingerprints of equal
// dimensions. Comparing fingerprints of different sizes fails with
// ErrSizeMismatch.
func (f *Fingerprint) Distance(other *Fingerprint) (int, error) {
	if f == nil || other == nil {
		return 0, errors.New("phash: fingerprint must not be nil")
	}
	if f.size != other.size {
		return 0, ErrSizeMismatch
	}
	dist := 0
	for i := range f.bits {
		if f.bits[i] != other.bits[i] {
			dist++
		}
	}
	return dist, nil
}

// String serializes the fingerprint as a lowercase hexadecimal string of
// exactly ceil(bitCount/4) digits, most-significant bit first. The bit
// string is left-padded with zeros up to the next nibble boundary, so the
// encoding is reversible given the known size.
func (f *Fingerprint) String() string {
	n := len(f.bits)
	digits := (n + 3) / 4
	pad := digits*4 - n

	var b strings.Builder
	b.Grow(digits)
	nibble := 0
	width := pad
	for _, set := range f.bits {
		nibble <<= 1
		if set {
			nibble |= 1
		}
		width++
		if width == 4 {
			b.WriteByte(hexDigit(nibble))
			nibble = 0
			width = 0
		}
	}
	return b.String()
}

// OnesCount returns the number of set bits, useful for quick diagnostics.
func (f *Fingerprint) OnesCount() int {
	count := 0
	for _, set := range f.bits {
		if set {
			count++
		}
	}
	return count
}

// ParseHex decodes a fingerprint previously serialized with String. The
// matrix edge length must be supplied because the hex form does not encode
// it; the digit count must match ceil(size*size/4).
func ParseHex(s string, size int) (*Fingerprint, error) {
	if size <= 0 {
		return nil, fmt.Errorf("phash: invalid fingerprint size %d", size)
	}
	n := size * size
	digits := (n + 3) / 4
	if len(s) != digits {
		return nil, fmt.Errorf("phash: expected %d hex digits for size %d, got %d", digits, size, len(s))
	}

	pad := digits*4 - n
	bitmap := make([]bool, 0, n)
	for i, r := range s {
		v, err := hexValue(r)
		if err != nil {
			return nil, err
		}
		for shift := 3; shift >= 0; shift-- {
			bit := v>>uint(shift)&1 == 1
			// The leading pad bits carry no payload and must be zero.
			if i == 0 && 3-shift < pad {
				if bit {
					return nil, fmt.Errorf("phash: non-zero padding bits in %q", s)
				}
				continue
			}
			bitmap = append(bitmap, bit)
		}
	}
	return newFingerprint(size, bitmap), nil
}

func hexDigit(v int) byte {
	if v < 10 {
		return byte('0' + v)
	}
	return byte('a' + v - 10)
}

func hexValue(r rune) (int, error) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), nil
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10, nil
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10, nil
	default:
		return 0, fmt.Errorf("phash: invalid hex digit %q", r)
	}
}
