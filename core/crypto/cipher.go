package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize          = 32
	pbkdf2Iterations = 210_000
)

// FieldCipher seals values with AES-256-GCM. Each ciphertext carries its
// own random nonce as a prefix.
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher builds a cipher from a raw 32 byte key.
func NewFieldCipher(key []byte) (*FieldCipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("data encryption key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{aead: gcm}, nil
}

// CipherFromDEK decodes a base64 data encryption key.
func CipherFromDEK(dekB64 string) (*FieldCipher, error) {
	dek, err := base64.StdEncoding.DecodeString(dekB64)
	if err != nil {
		return nil, fmt.Errorf("decode data encryption key: %w", err)
	}
	return NewFieldCipher(dek)
}

// CipherFromPassphrase derives the key with PBKDF2-SHA256.
func CipherFromPassphrase(passphrase, salt string) (*FieldCipher, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is empty")
	}
	if len(salt) < 8 {
		return nil, errors.New("salt must be at least 8 bytes")
	}
	key := pbkdf2.Key([]byte(passphrase), []byte(salt), pbkdf2Iterations, keySize, sha256.New)
	return NewFieldCipher(key)
}

// EncryptField returns nonce||ciphertext.
func (c *FieldCipher) EncryptField(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptField reverses EncryptField.
func (c *FieldCipher) DecryptField(ciphertext []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(ciphertext) < n {
		return nil, errors.New("ciphertext too short")
	}
	return c.aead.Open(nil, ciphertext[:n], ciphertext[n:], nil)
}
