// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package encryption provides authenticated field encryption for data at
// rest (person contact and bank details, attachment metadata).
//
// Ciphertexts are versioned: every value is written as "v<keyID>:" followed
// by base64(nonce || AES-256-GCM ciphertext). The keyring can hold multiple
// keys so old rows stay readable after a new active key is introduced; key
// rotation re-encrypts rows in batches under the active key.
//
// Key material is supplied as "id:material" entries. Material is either a
// base64-encoded 32-byte key or a passphrase stretched with PBKDF2-SHA256.
// FIPS mode rejects passphrase-derived keys and requires full-length
// random key material.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/tomtom215/custodia/internal/metrics"
)

// Encryption errors.
var (
	// ErrKeyMissing indicates no encryption key was configured.
	ErrKeyMissing = errors.New("encryption key not configured")

	// ErrDecryptionFailed indicates the decryption operation failed.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidCiphertext indicates the ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrUnknownKey indicates the ciphertext references a key not in the ring.
	ErrUnknownKey = errors.New("unknown encryption key")

	// ErrFIPSViolation indicates key material not permitted in FIPS mode.
	ErrFIPSViolation = errors.New("key material not permitted in FIPS mode")
)

// keyDerivationContext binds derived keys to their purpose so the same
// master material cannot be reused for an unrelated cipher elsewhere.
const keyDerivationContext = "custodia-field-encryption"

// Config holds keyring configuration for the encryption service.
type Config struct {
	// Keys is the keyring as "id:material" entries.
	Keys []string

	// ActiveKey is the id new ciphertexts are written under.
	ActiveKey string

	// PBKDF2Iterations is the stretch count for passphrase material.
	PBKDF2Iterations int

	// FIPSMode forbids passphrase-derived keys and short material.
	FIPSMode bool
}

// Service encrypts and decrypts field values with a versioned keyring.
// Safe for concurrent use; the keyring is immutable after construction.
type Service struct {
	keys     map[string]cipher.AEAD
	activeID string
}

// NewService builds a Service from keyring configuration.
// Returns (nil, nil) when no keys are configured - encryption disabled,
// values pass through unchanged.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Keys) == 0 {
		return nil, nil
	}
	if cfg.ActiveKey == "" {
		return nil, ErrKeyMissing
	}

	iterations := cfg.PBKDF2Iterations
	if iterations <= 0 {
		iterations = 600000
	}

	keys := make(map[string]cipher.AEAD, len(cfg.Keys))
	for _, entry := range cfg.Keys {
		id, material, ok := strings.Cut(entry, ":")
		if !ok || id == "" || material == "" {
			return nil, fmt.Errorf("keyring entry must be 'id:material', got %q", entry)
		}

		master, err := resolveMaterial(id, material, iterations, cfg.FIPSMode)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", id, err)
		}

		aead, err := buildAEAD(master)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", id, err)
		}
		keys[id] = aead
	}

	if _, ok := keys[cfg.ActiveKey]; !ok {
		return nil, fmt.Errorf("%w: active key %q not in ring", ErrUnknownKey, cfg.ActiveKey)
	}

	return &Service{keys: keys, activeID: cfg.ActiveKey}, nil
}

// resolveMaterial turns a keyring material string into 32 bytes of master key.
// Base64-encoded 32-byte material is used directly; anything else is treated
// as a passphrase and stretched with PBKDF2-SHA256 (rejected in FIPS mode).
func resolveMaterial(id, material string, iterations int, fips bool) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(material); err == nil && len(decoded) == 32 {
		return decoded, nil
	}

	if fips {
		return nil, fmt.Errorf("%w: material must be base64-encoded 32 bytes", ErrFIPSViolation)
	}

	// Deterministic per-key salt keeps derivation stable across restarts.
	salt := []byte("custodia-key-salt:" + id)
	return pbkdf2.Key([]byte(material), salt, iterations, 32, sha256.New), nil
}

// buildAEAD derives the AES-256-GCM cipher from master key material.
func buildAEAD(master []byte) (cipher.AEAD, error) {
	derived, err := deriveKey(master, []byte(keyDerivationContext), 32)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}
	return aead, nil
}

// deriveKey derives a key using HKDF-SHA256.
func deriveKey(secret, context []byte, keyLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, context)
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// IsEnabled returns true if encryption is enabled.
func (s *Service) IsEnabled() bool {
	return s != nil && len(s.keys) > 0
}

// ActiveKeyID returns the id of the key new ciphertexts are written under.
func (s *Service) ActiveKeyID() string {
	if s == nil {
		return ""
	}
	return s.activeID
}

// KeyIDs returns all key ids in the ring.
func (s *Service) KeyIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	return ids
}

// Encrypt encrypts the plaintext under the active key and returns the
// versioned ciphertext "v<keyID>:<base64>". Empty strings pass through.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if !s.IsEnabled() {
		return plaintext, nil
	}
	if plaintext == "" {
		return "", nil
	}

	aead := s.keys[s.activeID]

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nonce, nonce, []byte(plaintext), nil)

	metrics.EncryptionOperations.WithLabelValues("encrypt", s.activeID).Inc()
	return "v" + s.activeID + ":" + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a versioned ciphertext with whichever ring key its
// prefix names. Empty strings pass through.
func (s *Service) Decrypt(ciphertext string) (string, error) {
	if !s.IsEnabled() {
		return ciphertext, nil
	}
	if ciphertext == "" {
		return "", nil
	}

	keyID, data, err := splitCiphertext(ciphertext)
	if err != nil {
		return "", err
	}

	aead, ok := s.keys[keyID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, keyID)
	}

	nonceSize := aead.NonceSize()
	if len(data) < nonceSize+1+aead.Overhead() {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}

	nonce := data[:nonceSize]
	plaintext, err := aead.Open(nil, nonce, data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptionFailed, err.Error())
	}

	metrics.EncryptionOperations.WithLabelValues("decrypt", keyID).Inc()
	return string(plaintext), nil
}

// NeedsRotation reports whether a ciphertext was written under a key other
// than the active one. Key rotation re-encrypts exactly these values.
func (s *Service) NeedsRotation(ciphertext string) bool {
	if !s.IsEnabled() || ciphertext == "" {
		return false
	}
	keyID, _, err := splitCiphertext(ciphertext)
	if err != nil {
		return false
	}
	return keyID != s.activeID
}

// splitCiphertext parses "v<keyID>:<base64>" into key id and raw bytes.
func splitCiphertext(ciphertext string) (string, []byte, error) {
	if !strings.HasPrefix(ciphertext, "v") {
		return "", nil, fmt.Errorf("%w: missing version prefix", ErrInvalidCiphertext)
	}
	keyID, encoded, ok := strings.Cut(ciphertext[1:], ":")
	if !ok || keyID == "" {
		return "", nil, fmt.Errorf("%w: missing key id", ErrInvalidCiphertext)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}
	return keyID, data, nil
}

// GenerateEncryptionKey generates a cryptographically secure encryption key.
// Returns the key as a base64-encoded string suitable for ENCRYPTION_KEYS.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, 32) // 256 bits
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
