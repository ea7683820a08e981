package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// PNGGradient encodes a 64x64 PNG whose pixels form a horizontal gradient
// seeded by seed. Different seeds produce images with different perceptual
// hashes; the same seed always produces identical bytes.
func PNGGradient(t *testing.T, seed uint8) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*4) ^ seed})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}
