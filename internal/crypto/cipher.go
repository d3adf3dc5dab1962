package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherSuite is the authenticated symmetric cipher used over a connection's
// session key, pinned to ChaCha20-Poly1305 per SPEC_FULL.md §9.3.
type CipherSuite struct {
	aead cipher.AEAD
}

// NewCipherSuite builds a CipherSuite bound to a 32-byte session key.
func NewCipherSuite(key [32]byte) (*CipherSuite, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("constructing chacha20poly1305: %w", err)
	}
	return &CipherSuite{aead: aead}, nil
}

// EncryptString seals plaintext and returns it Base64-encoded, matching the
// wire convention of spec.md §4.2: ciphertext is framed as Base64 inside a
// string payload field when ENCRYPTED is set.
func (c *CipherSuite) EncryptString(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func (c *CipherSuite) DecryptString(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding base64 ciphertext: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext shorter than nonce size %d", nonceSize)
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("opening ciphertext: %w", err)
	}
	return string(plaintext), nil
}
