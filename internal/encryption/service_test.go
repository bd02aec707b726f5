// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package encryption

import (
	"errors"
	"strings"
	"testing"
)

func testConfig(t *testing.T, active string) Config {
	t.Helper()

	k1, err := GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	k2, err := GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	return Config{
		Keys:             []string{"k1:" + k1, "k2:" + k2},
		ActiveKey:        active,
		PBKDF2Iterations: 100000,
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testConfig(t, "k1"))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	for _, plaintext := range []string{"x", "+49-170-1234567", "DE89 3704 0044 0532 0130 00", strings.Repeat("a", 4096)} {
		ct, err := svc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if !strings.HasPrefix(ct, "vk1:") {
			t.Errorf("expected v-prefixed ciphertext, got %q", ct[:8])
		}
		if ct == plaintext {
			t.Error("expected ciphertext to differ from plaintext")
		}

		got, err := svc.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
		}
	}
}

func TestEncryptEmptyPassthrough(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testConfig(t, "k1"))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	ct, err := svc.Encrypt("")
	if err != nil || ct != "" {
		t.Errorf("expected empty passthrough, got %q, %v", ct, err)
	}
}

func TestDisabledServicePassthrough(t *testing.T) {
	t.Parallel()

	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("expected disabled service, got error: %v", err)
	}
	if svc.IsEnabled() {
		t.Error("expected nil service to report disabled")
	}

	ct, err := svc.Encrypt("plaintext")
	if err != nil || ct != "plaintext" {
		t.Errorf("expected passthrough, got %q, %v", ct, err)
	}
}

func TestDecryptAcrossKeyRotation(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "k1")

	oldSvc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	ct, err := oldSvc.Encrypt("secret-value")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// New active key, old key still in the ring
	cfg.ActiveKey = "k2"
	newSvc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	got, err := newSvc.Decrypt(ct)
	if err != nil {
		t.Fatalf("expected old ciphertext to decrypt after rotation: %v", err)
	}
	if got != "secret-value" {
		t.Errorf("round trip mismatch after rotation: %q", got)
	}

	if !newSvc.NeedsRotation(ct) {
		t.Error("expected old-key ciphertext to need rotation")
	}

	reencrypted, err := newSvc.Encrypt(got)
	if err != nil {
		t.Fatalf("re-encrypt failed: %v", err)
	}
	if !strings.HasPrefix(reencrypted, "vk2:") {
		t.Errorf("expected new ciphertext under k2, got %q", reencrypted[:8])
	}
	if newSvc.NeedsRotation(reencrypted) {
		t.Error("expected active-key ciphertext to not need rotation")
	}
}

func TestDecryptUnknownKey(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testConfig(t, "k1"))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	_, err = svc.Decrypt("vk9:aGVsbG8gd29ybGQgaGVsbG8gd29ybGQgaGVsbG8=")
	if !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testConfig(t, "k1"))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	ct, err := svc.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Flip a character in the base64 payload
	tampered := []byte(ct)
	last := len(tampered) - 2
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = svc.Decrypt(string(tampered))
	if err == nil {
		t.Error("expected tampered ciphertext to fail authentication")
	}
}

func TestDecryptMalformed(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testConfig(t, "k1"))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	for _, ct := range []string{"no-prefix", "v:missing-id", "vk1:!!!not-base64!!!", "vk1:c2hvcnQ="} {
		if _, err := svc.Decrypt(ct); !errors.Is(err, ErrInvalidCiphertext) {
			t.Errorf("Decrypt(%q): expected ErrInvalidCiphertext, got %v", ct, err)
		}
	}
}

func TestPassphraseDerivation(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Keys:             []string{"k1:correct horse battery staple"},
		ActiveKey:        "k1",
		PBKDF2Iterations: 100000,
	}

	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService failed for passphrase key: %v", err)
	}

	ct, err := svc.Encrypt("value")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Same passphrase yields the same derived key across restarts
	svc2, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	got, err := svc2.Decrypt(ct)
	if err != nil || got != "value" {
		t.Errorf("expected deterministic derivation, got %q, %v", got, err)
	}
}

func TestFIPSModeRejectsPassphrase(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Keys:             []string{"k1:correct horse battery staple"},
		ActiveKey:        "k1",
		PBKDF2Iterations: 100000,
		FIPSMode:         true,
	}

	_, err := NewService(cfg)
	if !errors.Is(err, ErrFIPSViolation) {
		t.Errorf("expected ErrFIPSViolation, got %v", err)
	}
}

func TestFIPSModeAcceptsFullLengthKey(t *testing.T) {
	t.Parallel()

	key, err := GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := Config{
		Keys:             []string{"k1:" + key},
		ActiveKey:        "k1",
		PBKDF2Iterations: 100000,
		FIPSMode:         true,
	}

	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("expected FIPS mode to accept 32-byte key: %v", err)
	}

	ct, err := svc.Encrypt("value")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	got, err := svc.Decrypt(ct)
	if err != nil || got != "value" {
		t.Errorf("round trip failed in FIPS mode: %q, %v", got, err)
	}
}
