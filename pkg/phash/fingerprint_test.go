package phash

import (
	"strings"
	"testing"
)

func fingerprintFromPattern(t *testing.T, size int, pattern func(i int) bool) *Fingerprint {
	t.Helper()
	bitmap := make([]bool, size*size)
	for i := range bitmap {
		bitmap[i] = pattern(i)
	}
	return newFingerprint(size, bitmap)
}

func TestHexRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		pattern func(i int) bool
	}{
		{"all zero 8x8", 8, func(int) bool { return false }},
		{"all ones 8x8", 8, func(int) bool { return true }},
		{"alternating 8x8", 8, func(i int) bool { return i%2 == 0 }},
		{"sparse 4x4", 4, func(i int) bool { return i == 3 || i == 11 }},
		{"odd width 3x3", 3, func(i int) bool { return i%3 == 1 }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fp := fingerprintFromPattern(t, tc.size, tc.pattern)

			encoded := fp.String()
			wantLen := (tc.size*tc.size + 3) / 4
			if len(encoded) != wantLen {
				t.Fatalf("hex length = %d, want %d", len(encoded), wantLen)
			}
			if encoded != strings.ToLower(encoded) {
				t.Fatalf("hex %q is not lowercase", encoded)
			}

			decoded, err := ParseHex(encoded, tc.size)
			if err != nil {
				t.Fatalf("ParseHex(%q): %v", encoded, err)
			}
			if !fp.Equal(decoded) {
				t.Fatalf("round trip mismatch: %q decoded to %q", encoded, decoded)
			}
		})
	}
}

func TestHexKnownValues(t *testing.T) {
	t.Parallel()

	// First row of an 8x8 matrix all set: 0xff followed by zeros.
	fp := fingerprintFromPattern(t, 8, func(i int) bool { return i < 8 })
	if got := fp.String(); got != "ff00000000000000" {
		t.Fatalf("String() = %q, want ff00000000000000", got)
	}

	// 3x3 = 9 bits pads to 12: 000 then 110110110 encodes as 0x1b6.
	fp = fingerprintFromPattern(t, 3, func(i int) bool { return i%3 != 2 })
	if got := fp.String(); got != "1b6" {
		t.Fatalf("String() = %q, want 1b6", got)
	}
}

func TestParseHexErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		size int
	}{
		{"wrong length", "ff00", 8},
		{"bad digit", "zz00000000000000", 8},
		{"non-zero padding", "fff", 3},
		{"zero size", "00", 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseHex(tc.in, tc.size); err == nil {
				t.Fatalf("ParseHex(%q, %d) succeeded, want error", tc.in, tc.size)
			}
		})
	}
}

func TestEqualDifferentSizes(t *testing.T) {
	t.Parallel()

	a := fingerprintFromPattern(t, 4, func(int) bool { return true })
	b := fingerprintFromPattern(t, 8, func(int) bool { return true })
	if a.Equal(b) {
		t.Fatalf("fingerprints of different sizes compared equal")
	}
	if a.Equal(nil) {
		t.Fatalf("fingerprint compared equal to nil")
	}
}
