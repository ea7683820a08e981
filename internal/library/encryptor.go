package library

import "io"

// Encryptor protects catalog snapshots before they leave the machine.
// Keys live in files under the configured base directory; encryption uses
// the public key only.
type Encryptor interface {
	// Setup performs one-time key generation. Generates a key pair and
	// stores both halves at the configured paths.
	Setup() error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Decrypt decrypts data read from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error

	// IsConfigured returns true if the key files exist at configured paths.
	IsConfigured() bool
}
