// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists session credentials (token and user profile) on
// disk between runs. Values are encrypted at rest with AES-256-GCM under a
// key derived from a machine-local secret file, so a copied database is
// useless without the secret.
package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/gptstir/stir-tui/internal/util"
)

const (
	// NonceSize is the AES-GCM nonce size (96 bits).
	NonceSize = 12

	// KeySize is the AES-256 key size.
	KeySize = 32

	// SaltSize is the PBKDF2 salt size.
	SaltSize = 32

	// PBKDF2Iterations is the PBKDF2-SHA-256 iteration count.
	PBKDF2Iterations = 600000

	// secretFileSize is salt plus the random machine secret.
	secretFileSize = SaltSize + KeySize
)

// ErrDecryptionFailed indicates the ciphertext could not be authenticated,
// usually because the secret file changed or the value was tampered with.
var ErrDecryptionFailed = errors.New("decryption failed")

// valueCipher seals and opens stored values.
type valueCipher struct {
	aead cipher.AEAD
}

// loadOrCreateCipher derives the store key from the secret file at path,
// creating the file with fresh random material on first run.
func loadOrCreateCipher(path string) (*valueCipher, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		raw = make([]byte, secretFileSize)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate store secret: %w", err)
		}
		if err := util.AtomicWriteFile(path, raw, 0600, 0700); err != nil {
			return nil, fmt.Errorf("failed to write store secret: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read store secret: %w", err)
	}
	if len(raw) != secretFileSize {
		return nil, fmt.Errorf("store secret has wrong size: %d", len(raw))
	}

	salt, secret := raw[:SaltSize], raw[SaltSize:]
	key := pbkdf2.Key(secret, salt, PBKDF2Iterations, KeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	ZeroBytes(key)
	return &valueCipher{aead: aead}, nil
}

// Seal encrypts plaintext, prepending the random nonce.
func (c *valueCipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a value produced by Seal.
func (c *valueCipher) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrDecryptionFailed
	}
	nonce, sealed := ciphertext[:NonceSize], ciphertext[NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// ZeroBytes overwrites sensitive byte slices after use.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
