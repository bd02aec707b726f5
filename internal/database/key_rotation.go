// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Encryption key rotation. After a new active key is configured, stale
// ciphertexts (written under an older ring key) are re-encrypted in place,
// batch by batch, until every encrypted column carries the active key's
// prefix. Rotation is resumable: each batch commits independently, so an
// interrupted run picks up where it left off.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/custodia/internal/encryption"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
)

// RotationResult summarizes one key rotation run.
type RotationResult struct {
	Scanned   int64     `json:"scanned"`
	Rotated   int64     `json:"rotated"`
	ActiveKey string    `json:"active_key"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// RotateEncryptedFields re-encrypts every stale encrypted column under the
// active key, working in batches of batchSize rows. Returns how many rows
// were scanned and rotated across all tenants.
func (db *DB) RotateEncryptedFields(ctx context.Context, batchSize int) (*RotationResult, error) {
	if !db.crypto.IsEnabled() {
		return nil, fmt.Errorf("field encryption is not enabled")
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	result := &RotationResult{
		ActiveKey: db.crypto.ActiveKeyID(),
		StartedAt: time.Now(),
	}

	for {
		rotated, scanned, err := db.rotatePeopleBatch(ctx, batchSize)
		if err != nil {
			return result, err
		}
		result.Scanned += scanned
		result.Rotated += rotated

		if rotated == 0 {
			break
		}

		logging.Debug().
			Int64("rotated", result.Rotated).
			Str("active_key", result.ActiveKey).
			Msg("Key rotation batch complete")
	}

	result.Duration = time.Since(result.StartedAt).String()
	logging.Info().
		Int64("scanned", result.Scanned).
		Int64("rotated", result.Rotated).
		Str("active_key", result.ActiveKey).
		Str("duration", result.Duration).
		Msg("Encryption key rotation complete")

	return result, nil
}

// rotatePeopleBatch re-encrypts up to batchSize stale people rows. Returns
// (rotated, scanned). A batch with zero rotations means rotation is done.
func (db *DB) rotatePeopleBatch(ctx context.Context, batchSize int) (int64, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	activePrefix := "v" + db.crypto.ActiveKeyID() + ":"

	// Stale rows carry an encrypted value without the active key's prefix.
	// Plaintext rows (pre-encryption data) are also picked up and sealed.
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, phone, bank_account FROM people
		WHERE (phone IS NOT NULL AND phone <> '' AND phone NOT LIKE ? || '%')
		   OR (bank_account IS NOT NULL AND bank_account <> '' AND bank_account NOT LIKE ? || '%')
		LIMIT ?
	`, activePrefix, activePrefix, batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query stale rows: %w", err)
	}

	type staleRow struct {
		id          string
		phone       sql.NullString
		bankAccount sql.NullString
	}

	var stale []staleRow
	for rows.Next() {
		var r staleRow
		if err := rows.Scan(&r.id, &r.phone, &r.bankAccount); err != nil {
			closeQuietly(rows)
			return 0, 0, fmt.Errorf("failed to scan stale row: %w", err)
		}
		stale = append(stale, r)
	}
	if err := rows.Err(); err != nil {
		closeQuietly(rows)
		return 0, 0, err
	}
	closeQuietly(rows)

	var rotated int64
	for _, r := range stale {
		phone, err := db.reseal(r.phone.String)
		if err != nil {
			return rotated, int64(len(stale)), fmt.Errorf("row %s: %w", r.id, err)
		}
		bankAccount, err := db.reseal(r.bankAccount.String)
		if err != nil {
			return rotated, int64(len(stale)), fmt.Errorf("row %s: %w", r.id, err)
		}

		_, err = db.conn.ExecContext(ctx, `
			UPDATE people SET phone = ?, bank_account = ?, updated_at = ? WHERE id = ?
		`, nullIfEmpty(phone), nullIfEmpty(bankAccount), time.Now(), r.id)
		if err != nil {
			return rotated, int64(len(stale)), fmt.Errorf("failed to update row %s: %w", r.id, err)
		}
		rotated++
		metrics.KeyRotationRows.WithLabelValues("rotated").Inc()
	}

	return rotated, int64(len(stale)), nil
}

// reseal decrypts a value with whichever ring key sealed it and re-encrypts
// it under the active key. Values already under the active key pass through.
func (db *DB) reseal(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	plaintext, err := db.crypto.Decrypt(value)
	if err != nil {
		// A value without a parsable version prefix is pre-encryption
		// plaintext: seal it as-is. A ciphertext under a key no longer in
		// the ring is unrecoverable and must abort the run.
		if !errors.Is(err, encryption.ErrInvalidCiphertext) {
			return "", err
		}
		plaintext = value
	}
	return db.crypto.Encrypt(plaintext)
}
