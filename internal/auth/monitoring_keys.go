// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Monitoring API key management for external monitoring systems.
//
// Key format: cust_mon_<base64-encoded-id>_<random-secret>
//
// Only a bcrypt hash of the key is stored. Validation looks candidates up
// by the 12-character display prefix, then verifies the hash. Keys carry
// scopes, optional expiry, and an optional IP allowlist.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

const (
	// monitoringKeyPrefix is the prefix for all Custodia monitoring keys.
	monitoringKeyPrefix = "cust_mon_"

	// monitoringKeySecretLength is the random secret length in bytes.
	monitoringKeySecretLength = 32

	// monitoringKeyDisplayLength is how many characters of the key are
	// stored in clear for identification.
	monitoringKeyDisplayLength = 12

	// monitoringKeyBcryptCost is the bcrypt cost for key hashing.
	monitoringKeyBcryptCost = 12

	// MonitoringKeyHeader is the alternative header to Authorization.
	MonitoringKeyHeader = "X-Monitoring-API-Key"
)

// Monitoring key errors
var (
	// ErrKeyNotFound is returned when no key matches the presented value.
	ErrKeyNotFound = errors.New("monitoring key not found")

	// ErrKeyRevoked is returned for revoked keys.
	ErrKeyRevoked = errors.New("monitoring key revoked")

	// ErrKeyExpired is returned for expired keys.
	ErrKeyExpired = errors.New("monitoring key expired")

	// ErrKeyIPDenied is returned when the client IP is not allowlisted.
	ErrKeyIPDenied = errors.New("IP address not allowed for this key")

	// ErrKeyScope is returned when the key lacks a required scope.
	ErrKeyScope = errors.New("insufficient key scope")
)

// MonitoringKeyStore defines the database operations for key management.
type MonitoringKeyStore interface {
	CreateMonitoringKey(ctx context.Context, key *models.MonitoringAPIKey) error
	GetMonitoringKeyByID(ctx context.Context, tenantID, id string) (*models.MonitoringAPIKey, error)
	GetMonitoringKeysByPrefix(ctx context.Context, prefix string) ([]models.MonitoringAPIKey, error)
	ListMonitoringKeys(ctx context.Context, tenantID string) ([]models.MonitoringAPIKey, error)
	TouchMonitoringKey(ctx context.Context, id, ip string, usedAt time.Time) error
	RevokeMonitoringKey(ctx context.Context, tenantID, id, revokedBy, reason string) error
	DeleteMonitoringKey(ctx context.Context, tenantID, id string) error
}

// KeyManager handles monitoring API key operations.
type KeyManager struct {
	store  MonitoringKeyStore
	seclog *logging.SecurityLogger
}

// NewKeyManager creates a monitoring key manager.
func NewKeyManager(store MonitoringKeyStore) *KeyManager {
	return &KeyManager{
		store:  store,
		seclog: logging.NewSecurityLogger(),
	}
}

// Create generates a new monitoring key for a tenant.
// Returns the key record and the plaintext key (shown only once).
func (m *KeyManager) Create(ctx context.Context, tenantID, createdBy string, req *models.CreateMonitoringKeyRequest) (*models.MonitoringAPIKey, string, error) {
	for _, scope := range req.Scopes {
		if !models.IsValidKeyScope(scope) {
			return nil, "", fmt.Errorf("invalid scope: %s", scope)
		}
	}

	keyID := uuid.New().String()

	secretBytes := make([]byte, monitoringKeySecretLength)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, "", fmt.Errorf("failed to generate key secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	idEncoded := base64.RawURLEncoding.EncodeToString([]byte(keyID))
	plaintext := fmt.Sprintf("%s%s_%s", monitoringKeyPrefix, idEncoded, secret)

	hash, err := hashMonitoringKey(plaintext)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash key: %w", err)
	}

	var expiresAt *time.Time
	if req.ExpiresIn != nil && *req.ExpiresIn > 0 {
		exp := time.Now().Add(time.Duration(*req.ExpiresIn) * 24 * time.Hour)
		expiresAt = &exp
	}

	key := &models.MonitoringAPIKey{
		ID:          keyID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		KeyPrefix:   plaintext[:monitoringKeyDisplayLength],
		KeyHash:     hash,
		Scopes:      req.Scopes,
		ExpiresAt:   expiresAt,
		IPAllowlist: req.IPAllowlist,
		CreatedAt:   time.Now(),
		CreatedBy:   createdBy,
	}

	if err := m.store.CreateMonitoringKey(ctx, key); err != nil {
		return nil, "", fmt.Errorf("failed to store key: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("key_id", keyID).
		Str("tenant_id", tenantID).
		Str("name", req.Name).
		Int("scopes", len(req.Scopes)).
		Msg("Monitoring API key created")

	return key, plaintext, nil
}

// Validate checks a plaintext key and returns the key record if valid.
// Lookup goes through the display prefix so only a handful of bcrypt
// comparisons run per request.
func (m *KeyManager) Validate(ctx context.Context, plaintext, clientIP string) (*models.MonitoringAPIKey, error) {
	if !strings.HasPrefix(plaintext, monitoringKeyPrefix) || len(plaintext) < monitoringKeyDisplayLength {
		metrics.MonitoringKeyValidations.WithLabelValues("invalid").Inc()
		return nil, ErrKeyNotFound
	}

	candidates, err := m.store.GetMonitoringKeysByPrefix(ctx, plaintext[:monitoringKeyDisplayLength])
	if err != nil {
		return nil, fmt.Errorf("key lookup failed: %w", err)
	}

	var key *models.MonitoringAPIKey
	for i := range candidates {
		if verifyMonitoringKey(plaintext, candidates[i].KeyHash) {
			key = &candidates[i]
			break
		}
	}
	if key == nil {
		metrics.MonitoringKeyValidations.WithLabelValues("invalid").Inc()
		m.seclog.LogMonitoringKeyUsed(plaintext[:monitoringKeyDisplayLength], clientIP, "", false, "no matching key")
		return nil, ErrKeyNotFound
	}

	if key.IsRevoked() {
		metrics.MonitoringKeyValidations.WithLabelValues("revoked").Inc()
		m.seclog.LogMonitoringKeyUsed(key.KeyPrefix, clientIP, "", false, "key revoked")
		return nil, ErrKeyRevoked
	}
	if key.IsExpired() {
		metrics.MonitoringKeyValidations.WithLabelValues("expired").Inc()
		m.seclog.LogMonitoringKeyUsed(key.KeyPrefix, clientIP, "", false, "key expired")
		return nil, ErrKeyExpired
	}
	if !key.IsIPAllowed(clientIP) {
		metrics.MonitoringKeyValidations.WithLabelValues("ip_denied").Inc()
		m.seclog.LogMonitoringKeyUsed(key.KeyPrefix, clientIP, "", false, "IP not allowlisted")
		return nil, ErrKeyIPDenied
	}

	metrics.MonitoringKeyValidations.WithLabelValues("success").Inc()

	// Usage bookkeeping is fire-and-forget; validation latency should not
	// depend on the write.
	keyID := key.ID
	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.store.TouchMonitoringKey(touchCtx, keyID, clientIP, time.Now()); err != nil {
			logging.Warn().Err(err).Str("key_id", keyID).Msg("Failed to record monitoring key use")
		}
	}()

	return key, nil
}

// List returns a tenant's monitoring keys.
func (m *KeyManager) List(ctx context.Context, tenantID string) ([]models.MonitoringAPIKey, error) {
	return m.store.ListMonitoringKeys(ctx, tenantID)
}

// Get retrieves one key by ID.
func (m *KeyManager) Get(ctx context.Context, tenantID, id string) (*models.MonitoringAPIKey, error) {
	return m.store.GetMonitoringKeyByID(ctx, tenantID, id)
}

// Revoke revokes a key. Revocation takes effect on the next validation.
func (m *KeyManager) Revoke(ctx context.Context, tenantID, id, revokedBy, reason string) error {
	if err := m.store.RevokeMonitoringKey(ctx, tenantID, id, revokedBy, reason); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().
		Str("key_id", id).
		Str("revoked_by", revokedBy).
		Str("reason", reason).
		Msg("Monitoring API key revoked")
	return nil
}

// Delete permanently removes a key.
func (m *KeyManager) Delete(ctx context.Context, tenantID, id string) error {
	return m.store.DeleteMonitoringKey(ctx, tenantID, id)
}

// RequireScope checks that a validated key carries the scope.
func RequireScope(key *models.MonitoringAPIKey, scope models.KeyScope) error {
	if !key.HasScope(scope) {
		return fmt.Errorf("%w: requires %s", ErrKeyScope, scope)
	}
	return nil
}

// ExtractMonitoringKey pulls the key from a request, accepting either
// "Authorization: Bearer cust_mon_..." or the X-Monitoring-API-Key header.
func ExtractMonitoringKey(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		token := strings.TrimSpace(header[7:])
		if strings.HasPrefix(token, monitoringKeyPrefix) {
			return token
		}
	}
	return strings.TrimSpace(r.Header.Get(MonitoringKeyHeader))
}

// IsMonitoringKey checks if a token string looks like a monitoring key.
func IsMonitoringKey(token string) bool {
	return strings.HasPrefix(token, monitoringKeyPrefix)
}

// hashMonitoringKey hashes a key with bcrypt. The key is SHA-256'd first
// to stay under bcrypt's 72-byte limit.
func hashMonitoringKey(plaintext string) (string, error) {
	sha := sha256.Sum256([]byte(plaintext))
	hash, err := bcrypt.GenerateFromPassword(sha[:], monitoringKeyBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifyMonitoringKey checks a plaintext key against a stored hash.
func verifyMonitoringKey(plaintext, storedHash string) bool {
	sha := sha256.Sum256([]byte(plaintext))
	return bcrypt.CompareHashAndPassword([]byte(storedHash), sha[:]) == nil
}
