// Package secretbox provides symmetric encryption of sensitive strings at
// rest, grounded on original_source/src/core/encryption.py: a key is
// generated on first start and stored at a fixed, owner-only-readable path;
// encrypt() prefixes ciphertext with "ENC:"; decrypt() returns its input
// unchanged when not so prefixed. A missing or unreadable key degrades to
// identity (plaintext) rather than failing callers.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const prefix = "ENC:"

const keySize = 32 // AES-256

// Box encrypts and decrypts strings with a locally-generated AES-256-GCM key.
// A zero-value Box (degraded) behaves as the identity function, matching the
// original's "missing crypto backend degrades to plaintext" semantics.
type Box struct {
	gcm      cipher.AEAD
	degraded bool
}

// Open loads the key at path, generating and persisting a new one with
// owner-only permissions (0o600) if it does not yet exist. If the key
// cannot be created or read, Open returns a degraded Box (err is non-nil
// but the Box is still usable, passing strings through unchanged) — callers
// that only care about "can I encrypt" should check Degraded().
func Open(path string) (*Box, error) {
	key, err := loadOrCreateKey(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("secret box key unavailable, degrading to plaintext")
		return &Box{degraded: true}, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		log.Warn().Err(err).Msg("secret box cipher init failed, degrading to plaintext")
		return &Box{degraded: true}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		log.Warn().Err(err).Msg("secret box gcm init failed, degrading to plaintext")
		return &Box{degraded: true}, err
	}
	return &Box{gcm: gcm}, nil
}

// Degraded reports whether the box is operating without a usable key.
func (b *Box) Degraded() bool { return b == nil || b.degraded || b.gcm == nil }

// Encrypt returns "ENC:" + base64(ciphertext). If the box is degraded, s is
// returned unchanged.
func (b *Box) Encrypt(s string) string {
	if s == "" || b.Degraded() {
		return s
	}
	nonce := make([]byte, b.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		log.Warn().Err(err).Msg("secret box nonce generation failed, returning plaintext")
		return s
	}
	ciphertext := b.gcm.Seal(nonce, nonce, []byte(s), nil)
	return prefix + base64.URLEncoding.EncodeToString(ciphertext)
}

// Decrypt returns the plaintext for an "ENC:"-prefixed string. A string not
// carrying that prefix is returned unchanged (round-trip with Encrypt's
// identity fallback, and tolerant of data written before the box existed).
func (b *Box) Decrypt(s string) string {
	if !strings.HasPrefix(s, prefix) {
		return s
	}
	if b.Degraded() {
		return s
	}
	raw, err := base64.URLEncoding.DecodeString(strings.TrimPrefix(s, prefix))
	if err != nil {
		log.Warn().Err(err).Msg("secret box base64 decode failed")
		return s
	}
	nonceSize := b.gcm.NonceSize()
	if len(raw) < nonceSize {
		return s
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plain, err := b.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		log.Warn().Err(err).Msg("secret box decryption failed")
		return s
	}
	return string(plain)
}

func loadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != keySize {
			return nil, fmt.Errorf("key file %q has unexpected length %d", path, len(data))
		}
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create key directory: %w", err)
		}
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return key, nil
}
