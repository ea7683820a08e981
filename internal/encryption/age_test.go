package encryption

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/metcalfcloud/pictallion/internal/config"
)

func newTestEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	e := NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "pictallion.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "pictallion.key"),
	})
	if err := e.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return e
}

func TestAgeEncryptor_RoundTrip(t *testing.T) {
	e := newTestEncryptor(t)

	plaintext := "catalog snapshot bytes"
	var ciphertext bytes.Buffer
	if err := e.Encrypt(strings.NewReader(plaintext), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if strings.Contains(ciphertext.String(), plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	var decrypted bytes.Buffer
	if err := e.Decrypt(&ciphertext, &decrypted); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if decrypted.String() != plaintext {
		t.Errorf("decrypted = %q, want %q", decrypted.String(), plaintext)
	}
}

func TestAgeEncryptor_SetupRefusesOverwrite(t *testing.T) {
	e := newTestEncryptor(t)
	if err := e.Setup(); err == nil {
		t.Error("second Setup() expected error")
	}
}

func TestAgeEncryptor_IsConfigured(t *testing.T) {
	dir := t.TempDir()
	e := NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "pictallion.pub"),
		PrivateKeyPath: filepath.Join(dir, "pictallion.key"),
	})
	if e.IsConfigured() {
		t.Error("IsConfigured() = true before Setup")
	}
	if err := e.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup")
	}
}

func TestAgeEncryptor_DecryptWithWrongKey(t *testing.T) {
	e1 := newTestEncryptor(t)
	e2 := newTestEncryptor(t)

	var ciphertext bytes.Buffer
	if err := e1.Encrypt(strings.NewReader("secret"), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	var out bytes.Buffer
	if err := e2.Decrypt(&ciphertext, &out); err == nil {
		t.Error("Decrypt() with wrong key expected error")
	}
}
