package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoKeyMaterial is returned when neither a key file nor a key value is
// configured.
var ErrNoKeyMaterial = errors.New("cryptox: no key material configured")

// Sealer encrypts values at rest with AES-256-GCM. The output format is:
// [12-byte nonce][encrypted data][16-byte auth tag]
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 32-byte AES-256 key from keyMaterial using SHA-256.
func NewSealer(keyMaterial []byte) (*Sealer, error) {
	if len(keyMaterial) == 0 {
		return nil, ErrNoKeyMaterial
	}

	hash := sha256.Sum256(keyMaterial)

	block, err := aes.NewCipher(hash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	// GCM provides authentication, tampered values fail to open
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{aead: gcm}, nil
}

// LoadSealer builds a Sealer from, in order of preference:
// 1. the file at path (if set)
// 2. the literal value (if set)
//
// Unlike a server there is no ephemeral fallback: values sealed with a key
// that is lost on exit could never be opened again.
func LoadSealer(path, value string) (*Sealer, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read store key file: %w", err)
		}
		return NewSealer([]byte(strings.TrimSpace(string(data))))
	}
	if value != "" {
		return NewSealer([]byte(value))
	}
	return nil, ErrNoKeyMaterial
}

// Seal encrypts and authenticates plaintext with a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the ciphertext and auth tag to nonce
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}
