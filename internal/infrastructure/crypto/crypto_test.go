package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sealingKey = "k7Qm2xVb9LpR4tWz8NcH3yFd6JsA1eGu"

func newTestEncryptor(t *testing.T, key string) *Encryptor {
	t.Helper()
	enc, err := NewEncryptor(key)
	require.NoError(t, err)
	return enc
}

func TestNewEncryptor_KeyLength(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "32 byte key", key: sealingKey},
		{name: "short key", key: "too-short", wantErr: true},
		{name: "long key", key: sealingKey + "x", wantErr: true},
		{name: "missing key", key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptor(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				assert.Nil(t, enc)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, enc)
		})
	}
}

func TestEncryptor_SealsAccessTokens(t *testing.T) {
	enc := newTestEncryptor(t, sealingKey)

	tokens := map[string]string{
		"sandbox token":      "access-sandbox-de3ce8ef-33f8-452c-a685-8671031fc0f6",
		"production token":   "access-production-4b1c2e9f-0a7d-4f3e-9c51-2d8e6b7a0f13",
		"token after relink": "access-development-" + strings.Repeat("f", 36),
		"no token stored":    "",
	}

	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			sealed, err := enc.Encrypt(token)
			require.NoError(t, err)

			if token == "" {
				assert.Empty(t, sealed)
			} else {
				assert.NotContains(t, sealed, "access-")
				_, err := base64.StdEncoding.DecodeString(sealed)
				assert.NoError(t, err)
			}

			opened, err := enc.Decrypt(sealed)
			require.NoError(t, err)
			assert.Equal(t, token, opened)
		})
	}
}

func TestEncryptor_SameTokenSealsDifferently(t *testing.T) {
	enc := newTestEncryptor(t, sealingKey)
	token := "access-sandbox-de3ce8ef-33f8-452c-a685-8671031fc0f6"

	first, err := enc.Encrypt(token)
	require.NoError(t, err)
	second, err := enc.Encrypt(token)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "fresh nonce per seal")
}

func TestEncryptor_RejectsUnreadableColumn(t *testing.T) {
	enc := newTestEncryptor(t, sealingKey)

	sealed, err := enc.Encrypt("access-sandbox-de3ce8ef-33f8-452c-a685-8671031fc0f6")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	flipped := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name   string
		stored string
		target error
	}{
		{name: "flipped tag byte", stored: flipped},
		{name: "plaintext left in column", stored: "access-sandbox-not-sealed"},
		{name: "truncated value", stored: base64.StdEncoding.EncodeToString(raw[:10]), target: ErrCiphertextTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opened, err := enc.Decrypt(tt.stored)
			require.Error(t, err)
			assert.Empty(t, opened)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestEncryptor_RotatedKeyCannotOpen(t *testing.T) {
	sealed, err := newTestEncryptor(t, sealingKey).Encrypt("access-sandbox-de3ce8ef-33f8-452c-a685-8671031fc0f6")
	require.NoError(t, err)

	rotated := newTestEncryptor(t, strings.Repeat("r", 32))
	_, err = rotated.Decrypt(sealed)
	assert.Error(t, err)
}
