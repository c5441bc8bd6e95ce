package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotawatch/backend/internal/domain"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewService_RejectsMissingKey(t *testing.T) {
	_, err := NewService("")
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewService_RejectsWrongKeyLength(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("too-short"))
	_, err := NewService(short)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	svc, err := NewService(testKey(t))
	require.NoError(t, err)

	for _, plaintext := range []string{"", "sk-or-v1-abc123", "密钥", "a\x00b"} {
		ciphertext, err := svc.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		got, err := svc.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncrypt_ProducesFreshNonce(t *testing.T) {
	svc, err := NewService(testKey(t))
	require.NoError(t, err)

	first, err := svc.Encrypt("same input")
	require.NoError(t, err)
	second, err := svc.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	svc, err := NewService(testKey(t))
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = svc.Decrypt(tampered)
	var decErr *domain.DecryptionError
	require.ErrorAs(t, err, &decErr)
}

func TestDecrypt_DifferentKey(t *testing.T) {
	first, err := NewService(testKey(t))
	require.NoError(t, err)
	second, err := NewService(testKey(t))
	require.NoError(t, err)

	ciphertext, err := first.Encrypt("rotated away")
	require.NoError(t, err)

	_, err = second.Decrypt(ciphertext)
	var decErr *domain.DecryptionError
	require.ErrorAs(t, err, &decErr)
}

func TestDecrypt_Garbage(t *testing.T) {
	svc, err := NewService(testKey(t))
	require.NoError(t, err)

	var decErr *domain.DecryptionError

	_, err = svc.Decrypt("%%% not base64 %%%")
	require.ErrorAs(t, err, &decErr)

	_, err = svc.Decrypt(base64.StdEncoding.EncodeToString([]byte("tiny")))
	require.ErrorAs(t, err, &decErr)
}
