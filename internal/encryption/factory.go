package encryption

import (
	"fmt"

	"github.com/metcalfcloud/pictallion/internal/config"
	"github.com/metcalfcloud/pictallion/internal/library"
)

// NewEncryptorFromConfig creates an Encryptor based on the encryption config
// type. Type "none" returns (nil, nil): snapshots are then stored in
// plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (library.Encryptor, error) {
	switch cfg.Type {
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %s", cfg.Type)
	}
}
