/**
 * @description
 * Symmetric encryption of credential secrets at rest. One service instance is
 * built at process start from the configured master key and injected into
 * every component that touches secrets; there is no package-level state.
 *
 * Wire format: base64(nonce || AES-256-GCM ciphertext). A fresh random
 * 12-byte nonce is generated per encryption.
 */
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/quotawatch/backend/internal/domain"
)

const keySize = 32

// Service encrypts and decrypts credential secrets with one process-wide key.
type Service struct {
	aead cipher.AEAD
}

// NewService builds the encryption service from a base64-encoded 32-byte key.
// It fails when the key is absent or not a valid AES-256 key, which aborts
// process startup.
func NewService(encodedKey string) (*Service, error) {
	if encodedKey == "" {
		return nil, &domain.ConfigurationError{Field: "MASTER_ENCRYPTION_KEY", Reason: "must be set"}
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "MASTER_ENCRYPTION_KEY", Reason: "not valid base64"}
	}
	if len(key) != keySize {
		return nil, &domain.ConfigurationError{
			Field:  "MASTER_ENCRYPTION_KEY",
			Reason: fmt.Sprintf("must decode to %d bytes, got %d", keySize, len(key)),
		}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Service{aead: aead}, nil
}

// Encrypt seals plaintext and returns the base64 wire form.
func (s *Service) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Malformed input or ciphertext
// sealed under a different key yields a DecryptionError.
func (s *Service) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &domain.DecryptionError{Err: err}
	}
	if len(raw) < s.aead.NonceSize() {
		return "", &domain.DecryptionError{Err: fmt.Errorf("ciphertext shorter than nonce")}
	}

	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &domain.DecryptionError{Err: err}
	}
	return string(plaintext), nil
}
