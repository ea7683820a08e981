// Package identity computes content identity for ingested files: a SHA-256
// digest over the exact byte stream for identical-file detection, and a
// 64-bit average perceptual hash for visual similarity.
package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUndecodable means the bytes could not be decoded as an image, so no
// perceptual hash exists. Non-fatal at ingestion but blocks annotation.
var ErrUndecodable = errors.New("content is not a decodable image")

// PerceptualBits is the width of the perceptual hash bit vector.
const PerceptualBits = 64

// Identity is the computed identity pair for one file.
type Identity struct {
	ContentHash    string  // SHA-256, hex
	PerceptualHash *uint64 // nil when the content was undecodable
}

// Compute derives both hashes from the file's bytes. The content hash always
// succeeds; when the bytes cannot be decoded as an image the returned
// identity is content-hash-only and err wraps ErrUndecodable so the caller
// can degrade instead of aborting ingestion.
func Compute(data []byte) (Identity, error) {
	id := Identity{ContentHash: ContentHash(data)}

	phash, err := Perceptual(data)
	if err != nil {
		return id, err
	}
	id.PerceptualHash = &phash
	return id, nil
}

// ContentHash returns the SHA-256 digest of data as a hex string.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Perceptual computes the 64-bit average hash of the decoded visual content.
// Re-encoding the same image at a different quality changes the content hash
// but leaves this hash nearly unchanged. Fails with ErrUndecodable when data
// is not a decodable image.
func Perceptual(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	hash, err := goimagehash.AverageHash(img)
	if err != nil {
		return 0, fmt.Errorf("%w: computing average hash: %v", ErrUndecodable, err)
	}
	return hash.GetHash(), nil
}
