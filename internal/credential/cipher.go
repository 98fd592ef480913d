package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
)

// AESCipher seals and opens credential blobs with AES-256-GCM. The key is
// derived from the configured secret; the nonce is prepended to each blob.
type AESCipher struct {
	aead cipher.AEAD
}

func NewAESCipher(secret string) (*AESCipher, error) {
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("building cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("building gcm: %w", err)
	}

	return &AESCipher{aead: aead}, nil
}

// Encrypt serializes the credential map and seals it.
func (c *AESCipher) Encrypt(creds Credentials) ([]byte, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("encoding credentials: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a stored blob back into the credential map.
func (c *AESCipher) Decrypt(enc *Encrypted) (Credentials, error) {
	nonceSize := c.aead.NonceSize()
	if len(enc.Ciphertext) < nonceSize {
		return nil, fmt.Errorf("credential blob too short")
	}

	nonce, sealed := enc.Ciphertext[:nonceSize], enc.Ciphertext[nonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("opening credential blob: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}

	return creds, nil
}
