// Package sealer produces opaque reservation tokens. A token is the AES-GCM
// sealing of "<slot id>:<nonce>", so holding a token proves it was issued by
// this service and tells which slot it belongs to without a lookup.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type Sealer struct {
	aead cipher.AEAD
}

// New builds a Sealer from a base64 (standard encoding) AES key of 16, 24 or
// 32 bytes.
func New(keyB64 string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build token cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to build token cipher: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal issues a fresh token for slotID. Two calls never return the same token.
func (s *Sealer) Seal(slotID string) (string, error) {
	plaintext := []byte(slotID + ":" + uuid.NewString())

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ct := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

// Open authenticates token and returns the slot id it was issued for.
func (s *Sealer) Open(token string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidToken
	}
	nonce := data[:nonceSize]
	ciphertext := data[nonceSize:]

	pt, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidToken
	}

	slotID, _, ok := strings.Cut(string(pt), ":")
	if !ok || slotID == "" {
		return "", ErrInvalidToken
	}

	return slotID, nil
}
