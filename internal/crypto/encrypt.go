// Package crypto provides at-rest encryption for data source credentials
// and password hashing for user accounts.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"crypto/sha256"
)

// ErrCiphertextInvalid is returned when a stored ciphertext is malformed
// or fails authentication — a tampered or corrupted value.
var ErrCiphertextInvalid = errors.New("ciphertext invalid or tampered")

const cipherVersion = "v1"

// Sealer encrypts and decrypts data source connection strings using a
// per-record key derived from a master key via HKDF-SHA256, so that no
// two ciphertexts in the same organization share a key even when the
// same master key secret is used across the whole deployment.
type Sealer struct {
	masterKey []byte
}

// NewSealer builds a Sealer from a base64-encoded 32-byte master key, as
// read from the ENCRYPTION_KEY environment variable.
func NewSealer(base64MasterKey string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(base64MasterKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Sealer{masterKey: key}, nil
}

// Seal encrypts plaintext, binding the derived key to orgID and recordID
// so a ciphertext copied between organizations or records fails to decrypt.
// The returned string is framed as "v1:<nonce-b64>:<ciphertext-b64>".
func (s *Sealer) Seal(orgID, recordID string, plaintext []byte) (string, error) {
	key, err := s.deriveKey(orgID, recordID)
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return fmt.Sprintf("%s:%s:%s",
		cipherVersion,
		base64.RawURLEncoding.EncodeToString(nonce),
		base64.RawURLEncoding.EncodeToString(ciphertext),
	), nil
}

// Open decrypts a value produced by Seal for the same orgID and recordID.
func (s *Sealer) Open(orgID, recordID, framed string) ([]byte, error) {
	parts := strings.SplitN(framed, ":", 3)
	if len(parts) != 3 || parts[0] != cipherVersion {
		return nil, ErrCiphertextInvalid
	}

	nonce, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrCiphertextInvalid
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrCiphertextInvalid
	}

	key, err := s.deriveKey(orgID, recordID)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrCiphertextInvalid
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCiphertextInvalid
	}
	return plaintext, nil
}

func (s *Sealer) deriveKey(orgID, recordID string) ([]byte, error) {
	salt := []byte(orgID)
	info := []byte("biexec/datasource-credential:" + recordID)
	reader := hkdf.New(sha256.New, s.masterKey, salt, info)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
